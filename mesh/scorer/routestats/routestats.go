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

// Package routestats tracks per-neighbor reward history as an online
// mean/variance, using the teacher's welford dependency (otherwise used
// there for jitter/delay tracking). This is a diagnostic reliability trend
// only: it never feeds back into the Scorer's score function, since
// reinforcement-learning-style routing is explicitly out of scope.
package routestats

import (
	"sync"

	"github.com/eclesh/welford"
)

// Reward values applied by the relay orchestrator on send outcomes.
const (
	RewardSuccess = 10.0
	RewardFailure = -5.0
)

// Snapshot is a point-in-time read of a neighbor's reward statistics.
type Snapshot struct {
	Count    int
	Mean     float64
	Variance float64
}

type entry struct {
	stats *welford.Stats
	count int
}

// Table holds one welford accumulator per neighbor ID.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewTable builds an empty route-stats table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Record folds reward into neighborID's running statistics.
func (t *Table) Record(neighborID string, reward float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[neighborID]
	if !ok {
		e = &entry{stats: welford.New()}
		t.entries[neighborID] = e
	}
	e.stats.Add(reward)
	e.count++
}

// RecordSuccess records a successful send to neighborID.
func (t *Table) RecordSuccess(neighborID string) {
	t.Record(neighborID, RewardSuccess)
}

// RecordFailure records a failed send to neighborID.
func (t *Table) RecordFailure(neighborID string) {
	t.Record(neighborID, RewardFailure)
}

// Snapshot returns neighborID's current statistics, or ok=false if no
// reward has ever been recorded for it.
func (t *Table) Snapshot(neighborID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[neighborID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Count: e.count, Mean: e.stats.Mean(), Variance: e.stats.Variance()}, true
}
