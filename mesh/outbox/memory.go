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

package outbox

import (
	"sync"
	"time"

	"github.com/fieldrelay/mesh"
)

// Memory is a process-lifetime-only Outbox. All mutations are serialized
// by a single mutex, matching the spec's "concurrent mutations from
// different writers are serialized by the outbox" requirement.
type Memory struct {
	mu      sync.Mutex
	entries map[string]mesh.OutboxEntry
	nextSeq uint64
	nowFn   func() time.Time
}

// NewMemory builds an empty in-memory Outbox.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]mesh.OutboxEntry),
		nowFn:   time.Now,
	}
}

func (m *Memory) now() time.Time { return m.nowFn() }

// Enqueue implements Outbox.
func (m *Memory) Enqueue(packet mesh.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.nextSeq
	m.nextSeq++
	m.entries[packet.ID] = mesh.OutboxEntry{
		Packet:  packet,
		AddedAt: m.now(),
		Status:  mesh.StatusPending,
		Seq:     seq,
	}
	return nil
}

// NextPending implements Outbox: highest priority, then lowest Seq (FIFO).
func (m *Memory) NextPending() (mesh.OutboxEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *mesh.OutboxEntry
	for id := range m.entries {
		e := m.entries[id]
		if e.Status != mesh.StatusPending {
			continue
		}
		if best == nil || betterCandidate(e, *best) {
			ec := e
			best = &ec
		}
	}
	if best == nil {
		return mesh.OutboxEntry{}, false
	}
	return *best, true
}

func betterCandidate(a, b mesh.OutboxEntry) bool {
	if a.Packet.Priority != b.Packet.Priority {
		return a.Packet.Priority > b.Packet.Priority
	}
	return a.Seq < b.Seq
}

// MarkInProgress implements Outbox.
func (m *Memory) MarkInProgress(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return mesh.WrapPacket("outbox.MarkInProgress", id, errNotFound)
	}
	e.Status = mesh.StatusInProgress
	m.entries[id] = e
	return nil
}

// MarkSent implements Outbox.
func (m *Memory) MarkSent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return mesh.WrapPacket("outbox.MarkSent", id, errNotFound)
	}
	e.Status = mesh.StatusSent
	e.LastAttemptAt = m.now()
	m.entries[id] = e
	return nil
}

// MarkFailed implements Outbox.
func (m *Memory) MarkFailed(id string, transient bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, mesh.WrapPacket("outbox.MarkFailed", id, errNotFound)
	}

	if transient && e.Packet.IsSOSClass() {
		e.LastAttemptAt = m.now()
		e.Status = mesh.StatusPending
		m.entries[id] = e
		return true, nil
	}

	e.RetryCount++
	e.LastAttemptAt = m.now()
	max := maxRetriesFor(e)
	if e.RetryCount >= max {
		e.Status = mesh.StatusFailed
		m.entries[id] = e
		return false, nil
	}
	e.Status = mesh.StatusPending
	m.entries[id] = e
	return true, nil
}

// Remove implements Outbox.
func (m *Memory) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// AllEntries implements Outbox.
func (m *Memory) AllEntries() ([]mesh.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mesh.OutboxEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

// Stats implements Outbox.
func (m *Memory) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, e := range m.entries {
		switch e.Status {
		case mesh.StatusPending:
			s.Pending++
		case mesh.StatusInProgress:
			s.InProgress++
		case mesh.StatusSent:
			s.Sent++
		case mesh.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

// ExpirePending implements Outbox.
func (m *Memory) ExpirePending(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if e.Status != mesh.StatusPending {
			continue
		}
		if now.Sub(e.AddedAt) > ttlFor(e) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// recoverInProgress resets any in_progress entry to pending and returns how
// many it reset. Nothing in the package calls it (a fresh Memory has no
// in_progress entries); it is kept as an unexported method so tests can
// exercise the crash-recovery contract directly.
func (m *Memory) recoverInProgress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if e.Status == mesh.StatusInProgress {
			e.Status = mesh.StatusPending
			m.entries[id] = e
			n++
		}
	}
	return n
}

var _ Outbox = (*Memory)(nil)
