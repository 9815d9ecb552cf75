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

package seencache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a process-lifetime-only SeenCache backed by an LRU with
// capacity-bounded, oldest-entry eviction. It does not survive restarts;
// use the bbolt-backed variant in bolt.go when crash-survival is required.
type Memory struct {
	cache *lru.Cache[string, int64]
}

// NewMemory builds a Memory cache with the given capacity. capacity<=0
// falls back to DefaultCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, int64](capacity)
	if err != nil {
		// Only returned by golang-lru when size<=0, which we've already
		// ruled out above.
		panic(err)
	}
	return &Memory{cache: c}
}

// CheckAndInsert implements SeenCache.
func (m *Memory) CheckAndInsert(id string) bool {
	if m.cache.Contains(id) {
		return false
	}
	m.cache.Add(id, nowMillis())
	return true
}

// Len implements SeenCache.
func (m *Memory) Len() int {
	return m.cache.Len()
}

var _ SeenCache = (*Memory)(nil)
