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

// Package ingress implements the inbound packet classifier (component C7):
// duplicate/invalid/deliver/expired/forward, in the same single-purpose
// pipeline style as the teacher's ntpcheck response classification.
package ingress

import (
	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/seencache"
	"github.com/fieldrelay/mesh/trace"
)

// Outcome is the classification result of processing one inbound packet.
type Outcome string

const (
	OutcomeDrop    Outcome = "drop"
	OutcomeDeliver Outcome = "deliver"
	OutcomeForward Outcome = "forward"
)

// DropReason explains an OutcomeDrop result. The coordinator counts
// duplicates, expiries and all other drops in separate meshstats counters
// (exported as mesh_packets_duplicate, mesh_packets_expired and
// mesh_packets_dropped).
type DropReason string

const (
	DropDuplicate DropReason = "duplicate"
	DropInvalid   DropReason = "invalid"
	DropExpired   DropReason = "expired"
)

// Result is returned by Process.
type Result struct {
	Outcome Outcome
	Reason  DropReason // set only when Outcome == OutcomeDrop
	// Packet is the (possibly trace-appended, TTL-decremented) packet to
	// act on: deliver to the cloud uploader, enqueue for forwarding, or
	// (on drop) the original inbound packet for logging purposes only.
	Packet mesh.Packet
}

// Processor classifies inbound packets per spec.md §4.7.
type Processor struct {
	Seen   seencache.SeenCache
	SelfID string
}

// NewProcessor builds a Processor that checks duplicates against seen and
// appends selfID to the trace of every forwarded packet. Hop count is
// bounded by TTL only; no max-hops check is applied.
func NewProcessor(seen seencache.SeenCache, selfID string) *Processor {
	return &Processor{Seen: seen, SelfID: selfID}
}

// Process classifies a decoded inbound packet p. selfHasInternet reflects
// the node's connectivity state at the moment of processing.
func (proc *Processor) Process(p mesh.Packet, selfHasInternet bool) Result {
	if !proc.Seen.CheckAndInsert(p.ID) {
		return Result{Outcome: OutcomeDrop, Reason: DropDuplicate, Packet: p}
	}

	if err := trace.Validate(&p); err != nil {
		return Result{Outcome: OutcomeDrop, Reason: DropInvalid, Packet: p}
	}

	if selfHasInternet && p.Type == mesh.PacketSOS {
		return Result{Outcome: OutcomeDeliver, Packet: p}
	}

	if p.TTL == 0 {
		return Result{Outcome: OutcomeDrop, Reason: DropExpired, Packet: p}
	}

	if p.HasVisited(proc.SelfID) {
		return Result{Outcome: OutcomeDrop, Reason: DropInvalid, Packet: p}
	}

	forwarded := p
	forwarded.Trace = append(append([]string{}, p.Trace...), proc.SelfID)
	forwarded.TTL--
	return Result{Outcome: OutcomeForward, Packet: forwarded}
}
