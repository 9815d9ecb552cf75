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

// Package meshstats holds the counters a running mesh node exposes, mirroring
// ptp/sptp/client's Counters-map convention but kept in process rather than
// scraped over HTTP, since a mesh node has no separate daemon to poll.
package meshstats

import "sync/atomic"

// Counters is every monotonic counter a mesh node tracks. Snapshot exposes
// them under snake_case JSON names.
type Counters struct {
	PacketsForwarded    int64
	PacketsDelivered    int64
	PacketsDropped      int64
	PacketsDuplicate    int64
	PacketsExpired      int64
	SendsSucceeded      int64
	SendsFailed         int64
	OrchestratorPauses  int64
	OutboxPermanentFail int64
}

// Snapshot is a point-in-time, JSON-friendly copy of Counters.
type Snapshot struct {
	PacketsForwarded    int64  `json:"packets_forwarded"`
	PacketsDelivered    int64  `json:"packets_delivered"`
	PacketsDropped      int64  `json:"packets_dropped"`
	PacketsDuplicate    int64  `json:"packets_duplicate"`
	PacketsExpired      int64  `json:"packets_expired"`
	SendsSucceeded      int64  `json:"sends_succeeded"`
	SendsFailed         int64  `json:"sends_failed"`
	OrchestratorPauses  int64  `json:"orchestrator_pauses"`
	OutboxPermanentFail int64  `json:"outbox_permanent_fail"`
	HostUptimeSeconds   uint64 `json:"host_uptime_seconds"`
}

// IncPacketsForwarded bumps the forwarded-packet counter.
func (c *Counters) IncPacketsForwarded() { atomic.AddInt64(&c.PacketsForwarded, 1) }

// IncPacketsDelivered bumps the delivered-packet counter.
func (c *Counters) IncPacketsDelivered() { atomic.AddInt64(&c.PacketsDelivered, 1) }

// IncPacketsDropped bumps the dropped-packet counter.
func (c *Counters) IncPacketsDropped() { atomic.AddInt64(&c.PacketsDropped, 1) }

// IncPacketsDuplicate bumps the duplicate-drop counter.
func (c *Counters) IncPacketsDuplicate() { atomic.AddInt64(&c.PacketsDuplicate, 1) }

// IncPacketsExpired bumps the TTL-expired-drop counter.
func (c *Counters) IncPacketsExpired() { atomic.AddInt64(&c.PacketsExpired, 1) }

// IncSendsSucceeded bumps the successful-transmission counter.
func (c *Counters) IncSendsSucceeded() { atomic.AddInt64(&c.SendsSucceeded, 1) }

// IncSendsFailed bumps the failed-transmission counter.
func (c *Counters) IncSendsFailed() { atomic.AddInt64(&c.SendsFailed, 1) }

// IncOrchestratorPauses bumps the consecutive-failure pause counter.
func (c *Counters) IncOrchestratorPauses() { atomic.AddInt64(&c.OrchestratorPauses, 1) }

// IncOutboxPermanentFail bumps the packets-permanently-failed counter.
func (c *Counters) IncOutboxPermanentFail() { atomic.AddInt64(&c.OutboxPermanentFail, 1) }

// Snapshot returns a consistent-enough point-in-time read of all counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PacketsForwarded:    atomic.LoadInt64(&c.PacketsForwarded),
		PacketsDelivered:    atomic.LoadInt64(&c.PacketsDelivered),
		PacketsDropped:      atomic.LoadInt64(&c.PacketsDropped),
		PacketsDuplicate:    atomic.LoadInt64(&c.PacketsDuplicate),
		PacketsExpired:      atomic.LoadInt64(&c.PacketsExpired),
		SendsSucceeded:      atomic.LoadInt64(&c.SendsSucceeded),
		SendsFailed:         atomic.LoadInt64(&c.SendsFailed),
		OrchestratorPauses:  atomic.LoadInt64(&c.OrchestratorPauses),
		OutboxPermanentFail: atomic.LoadInt64(&c.OutboxPermanentFail),
		HostUptimeSeconds:   HostUptimeSeconds(),
	}
}
