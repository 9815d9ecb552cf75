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

// Package mesh holds the wire types and collaborator interfaces shared by
// every component of the relay engine (packet, seencache, outbox, nodetable,
// trace, scorer, ingress, relay, coordinator). Nothing in this package
// imports any of those subpackages, so it is safe for all of them to import
// mesh without creating a cycle.
package mesh

import "time"

// PacketType is the kind of payload a Packet carries.
type PacketType string

// Supported packet types. ACK is transported but inspected by no inbound
// handler.
const (
	PacketSOS    PacketType = "sos"
	PacketAck    PacketType = "ack"
	PacketStatus PacketType = "status"
	PacketData   PacketType = "data"
)

// SOSPriority is the minimum Packet.Priority treated as SOS-class for retry
// and scoring purposes, regardless of PacketType.
const SOSPriority = 3

// MaxPayloadBytes bounds the serialized size of a Packet, including wire
// envelope, per spec.
const MaxPayloadBytes = 65536

// MaxTTL is the largest legal value for Packet.TTL.
const MaxTTL = 100

// Packet is the unit of transmission relayed hop-by-hop across the mesh.
type Packet struct {
	ID           string     `json:"id"`
	OriginatorID string     `json:"originatorId"`
	Payload      []byte     `json:"payload"`
	Trace        []string   `json:"trace"`
	TTL          int        `json:"ttl"`
	CreatedAt    int64      `json:"timestamp"`
	Priority     int        `json:"priority"`
	Type         PacketType `json:"packetType"`
}

// IsSOSClass reports whether p should be treated as SOS-class for retry and
// scoring purposes: either its declared type is sos, or its priority is at
// or above SOSPriority.
func (p *Packet) IsSOSClass() bool {
	return p.Type == PacketSOS || p.Priority >= SOSPriority
}

// LastHop returns the most recent node in the trace, or "" if the trace is
// empty.
func (p *Packet) LastHop() string {
	if len(p.Trace) == 0 {
		return ""
	}
	return p.Trace[len(p.Trace)-1]
}

// HasVisited reports whether nodeID already appears anywhere in p.Trace.
func (p *Packet) HasVisited(nodeID string) bool {
	for _, id := range p.Trace {
		if id == nodeID {
			return true
		}
	}
	return false
}

// OutboxStatus is the FSM state of an OutboxEntry.
type OutboxStatus string

const (
	StatusPending    OutboxStatus = "pending"
	StatusInProgress OutboxStatus = "in_progress"
	StatusSent       OutboxStatus = "sent"
	StatusFailed     OutboxStatus = "failed"
)

// OutboxEntry wraps a Packet with its delivery bookkeeping.
type OutboxEntry struct {
	Packet         Packet
	AddedAt        time.Time
	RetryCount     int
	LastAttemptAt  time.Time
	Status         OutboxStatus
	// Seq breaks ties between entries with identical Packet.Priority and
	// AddedAt: lower Seq was enqueued first. See the tie-break note in
	// DESIGN.md.
	Seq uint64
}

// TriageLevel is a neighbor's self-reported medical/safety triage state.
type TriageLevel string

const (
	TriageNone   TriageLevel = "none"
	TriageGreen  TriageLevel = "green"
	TriageYellow TriageLevel = "yellow"
	TriageRed    TriageLevel = "red"
)

// NodeRole is a neighbor's current role in the mesh.
type NodeRole string

const (
	RoleIdle  NodeRole = "idle"
	RoleSender NodeRole = "sender"
	RoleRelay NodeRole = "relay"
	RoleGoal  NodeRole = "goal"
)

// NodeInfo is a directory entry describing one discovered neighbor.
type NodeInfo struct {
	ID                string
	DeviceAddress     string
	DisplayName       string
	BatteryLevel      int // 0..100
	HasInternet       bool
	Latitude          float64
	Longitude         float64
	LastSeen          time.Time
	SignalStrength    int // dBm, typically -100..0
	TriageLevel       TriageLevel
	Role              NodeRole
	AvailableForRelay bool
}

// IsStale reports whether the node's last announcement is older than
// staleTimeout as of now.
func (n *NodeInfo) IsStale(now time.Time, staleTimeout time.Duration) bool {
	return now.Sub(n.LastSeen) > staleTimeout
}

// NormalizedBattery maps BatteryLevel (0..100) onto 0..1.
func (n *NodeInfo) NormalizedBattery() float64 {
	return float64(n.BatteryLevel) / 100.0
}

// NormalizedSignal maps SignalStrength (dBm, typically -100..0) onto 0..1,
// clamped at both ends.
func (n *NodeInfo) NormalizedSignal() float64 {
	v := (float64(n.SignalStrength) + 100.0) / 100.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TransmissionResult is returned by Transport.ConnectAndSend.
type TransmissionResult struct {
	Success      bool
	Target       string
	ErrorCode    string
	ErrorMessage string
}
