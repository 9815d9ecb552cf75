/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package seencache implements the bounded, insertion-ordered duplicate
// cache (component C2): a capacity-1000-by-default set of packet IDs with
// oldest-entry eviction on overflow. Two implementations share the
// SeenCache interface: Memory (process-lifetime only, backed by an LRU) and
// the bbolt-backed durable variant in bolt.go, for crash-surviving "seen"
// state.
package seencache

// DefaultCapacity is the default bound on the number of tracked packet IDs.
const DefaultCapacity = 1000

// SeenCache is the duplicate-detection contract every variant implements.
type SeenCache interface {
	// CheckAndInsert returns true if id was newly inserted (caller should
	// process the packet), or false if id was already present (duplicate,
	// caller should drop it).
	CheckAndInsert(id string) (inserted bool)
	// Len reports the current number of tracked IDs.
	Len() int
}
