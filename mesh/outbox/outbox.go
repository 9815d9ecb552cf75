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

// Package outbox implements the durable outbound-packet priority queue
// (component C3): a per-entry FSM of pending -> in_progress -> {sent,
// pending (retry), failed}, modeled on the teacher's sptp client outbox
// of in-flight unicast requests awaiting a response before retry.
package outbox

import (
	"time"

	"github.com/fieldrelay/mesh"
)

// Retry and expiry constants, MUST reproduce the spec's field-observed
// values exactly: MaxRetries is shared with the relay orchestrator's
// consecutive-failure pause threshold so a paused orchestrator can never
// be outrun by a packet with retries still available.
const (
	MaxRetries    = 3
	MaxSOSRetries = 10

	NormalTTL = time.Hour
	SOSTTL    = 10 * time.Minute

	ExpirySweepInterval = 60 * time.Second
)

// Stats summarizes queue occupancy by status, for diagnostics.
type Stats struct {
	Pending    int
	InProgress int
	Sent       int
	Failed     int
}

// Outbox is the durable priority queue interface shared by the in-memory
// and bbolt-backed implementations.
type Outbox interface {
	// Enqueue adds a new pending entry for packet, assigning it the next
	// insertion sequence number for FIFO tie-breaking.
	Enqueue(packet mesh.Packet) error

	// NextPending returns the highest-priority pending entry (FIFO on
	// ties), or ok=false if the queue has no pending entries.
	NextPending() (entry mesh.OutboxEntry, ok bool)

	// MarkInProgress transitions id from pending to in_progress.
	MarkInProgress(id string) error

	// MarkSent transitions id to the terminal sent status and removes it
	// from future NextPending consideration.
	MarkSent(id string) error

	// MarkFailed records a failed send attempt. transient=true on an
	// SOS-class entry updates LastAttemptAt without incrementing
	// RetryCount and leaves status pending, so a failure with no send
	// attempt behind it (no neighbor to try) does not use up an SOS
	// packet's retries. Otherwise RetryCount increments and
	// the entry becomes failed once RetryCount reaches the type's
	// maximum. Returns whether the entry may still be retried.
	MarkFailed(id string, transient bool) (canRetry bool, err error)

	// Remove deletes an entry outright, regardless of status.
	Remove(id string) error

	// AllEntries returns every entry currently stored, any status.
	AllEntries() ([]mesh.OutboxEntry, error)

	// Stats summarizes queue occupancy by status.
	Stats() (Stats, error)

	// ExpirePending deletes pending entries older than their type's TTL
	// and returns the count removed.
	ExpirePending(now time.Time) (int, error)
}

func ttlFor(e mesh.OutboxEntry) time.Duration {
	if e.Packet.IsSOSClass() {
		return SOSTTL
	}
	return NormalTTL
}

func maxRetriesFor(e mesh.OutboxEntry) int {
	if e.Packet.IsSOSClass() {
		return MaxSOSRetries
	}
	return MaxRetries
}
