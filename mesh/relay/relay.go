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

// Package relay implements the outbox drain loop (component C8): one
// logical tick per RELAY_INTERVAL that picks the next pending packet,
// scores neighbors, and invokes the transport. The tick function and its
// context-cancellation/timer plumbing are modeled directly on the
// teacher's ptp/sptp/client SPTP.runInternal.
package relay

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/nodetable"
	"github.com/fieldrelay/mesh/outbox"
	"github.com/fieldrelay/mesh/packet"
	"github.com/fieldrelay/mesh/scorer"
	"github.com/fieldrelay/mesh/scorer/routestats"
)

// Tunable constants, authoritative per spec.
const (
	RelayInterval          = 10 * time.Second
	PostSendBlackout       = 500 * time.Millisecond
	MaxConsecutiveFailures = outbox.MaxRetries
	PauseDuration          = 30 * time.Second
	SendDeadline           = 5 * time.Second
)

// EventKind tags an emitted orchestrator event, for diagnostics/metrics.
type EventKind string

const (
	EventNoCandidate EventKind = "no_candidate"
	EventSending     EventKind = "sending"
	EventSuccess     EventKind = "success"
	EventFailure     EventKind = "failure"
	EventPaused      EventKind = "paused"
	EventResumed     EventKind = "resumed"
)

// Event is published on the orchestrator's diagnostics channel.
type Event struct {
	Kind      EventKind
	PacketID  string
	Target    string
	Reason    string
	Timestamp time.Time
}

// Transport is the subset of mesh.Transport the orchestrator drives.
type Transport interface {
	ConnectAndSend(ctx context.Context, deviceAddress string, payload []byte) (*mesh.TransmissionResult, error)
}

// CloudUploader is the subset of mesh.CloudUploader used for the
// local-delivery hook.
type CloudUploader interface {
	Upload(ctx context.Context, p mesh.Packet) error
}

// Orchestrator drains Outbox by periodic tick. It is not safe for
// concurrent use from more than one goroutine; only the tick loop mutates
// its internal backoff/failure state, matching the teacher's
// single-goroutine-owns-the-map convention for SPTP.backoff.
type Orchestrator struct {
	SelfID    string
	Neighbors *nodetable.Neighbors
	Outbox    outbox.Outbox
	Transport Transport
	Uploader  CloudUploader
	Stats     *routestats.Table
	Formula   *scorer.Formula
	Events    chan<- Event

	HasInternet func() bool
	NowFn       func() time.Time

	consecutiveFailures int
	pausedUntil         time.Time
}

// NewOrchestrator builds an Orchestrator with sane defaults for optional
// fields.
func NewOrchestrator(selfID string, neighbors *nodetable.Neighbors, ob outbox.Outbox, transport Transport) *Orchestrator {
	return &Orchestrator{
		SelfID:      selfID,
		Neighbors:   neighbors,
		Outbox:      ob,
		Transport:   transport,
		Stats:       routestats.NewTable(),
		HasInternet: func() bool { return false },
		NowFn:       time.Now,
	}
}

func (o *Orchestrator) now() time.Time { return o.NowFn() }

func (o *Orchestrator) emit(e Event) {
	e.Timestamp = o.now()
	if o.Events != nil {
		select {
		case o.Events <- e:
		default:
			log.Warnf("relay: dropping event %v, subscriber channel full", e.Kind)
		}
	}
}

// Paused reports whether the orchestrator is currently in its
// consecutive-failure pause window.
func (o *Orchestrator) Paused() bool {
	return o.now().Before(o.pausedUntil)
}

// ConsecutiveFailures reports the current run of consecutive send
// failures, reset to zero on the next success.
func (o *Orchestrator) ConsecutiveFailures() int {
	return o.consecutiveFailures
}

// Tick runs one drain-loop iteration, per spec.md §4.8.
func (o *Orchestrator) Tick(ctx context.Context) {
	if o.Paused() {
		return
	}

	if o.HasInternet() {
		o.deliverLocalSOS(ctx)
	}

	neighbors := o.Neighbors.AvailableForRelay()
	stats, err := o.Outbox.Stats()
	if err != nil {
		log.Errorf("relay: outbox stats: %v", err)
		return
	}
	nonEmpty := stats.Pending > 0

	if len(neighbors) == 0 && nonEmpty {
		o.failAllPendingSOS()
		o.emit(Event{Kind: EventNoCandidate})
		return
	}

	entry, ok := o.Outbox.NextPending()
	if !ok {
		return
	}

	candidate, found := scorer.BestCandidateWithFormula(&entry.Packet, neighbors, o.SelfID, o.now(), o.Formula)
	if !found {
		transient := entry.Packet.IsSOSClass()
		if _, err := o.Outbox.MarkFailed(entry.Packet.ID, transient); err != nil {
			log.Errorf("relay: mark failed: %v", err)
		}
		return
	}

	if err := o.Outbox.MarkInProgress(entry.Packet.ID); err != nil {
		log.Errorf("relay: mark in progress: %v", err)
		return
	}

	o.emit(Event{Kind: EventSending, PacketID: entry.Packet.ID, Target: candidate.Neighbor.ID})

	sendCtx, cancel := context.WithTimeout(ctx, SendDeadline)
	defer cancel()

	encoded, err := packet.Encode(&entry.Packet)
	if err != nil {
		log.Errorf("relay: encode %s: %v", entry.Packet.ID, err)
		_, _ = o.Outbox.MarkFailed(entry.Packet.ID, false)
		o.recordFailure(candidate.Neighbor.ID, entry.Packet.ID, err.Error())
		o.sleepBlackout(ctx)
		return
	}

	result, sendErr := o.Transport.ConnectAndSend(sendCtx, candidate.Neighbor.DeviceAddress, encoded)
	if sendErr == nil && result != nil && result.Success {
		if err := o.Outbox.MarkSent(entry.Packet.ID); err != nil {
			log.Errorf("relay: mark sent: %v", err)
		}
		o.Stats.RecordSuccess(candidate.Neighbor.ID)
		o.consecutiveFailures = 0
		o.emit(Event{Kind: EventSuccess, PacketID: entry.Packet.ID, Target: candidate.Neighbor.ID})
	} else {
		reason := ""
		if result != nil {
			reason = result.ErrorMessage
		}
		if sendErr != nil {
			reason = sendErr.Error()
		}
		o.recordFailure(candidate.Neighbor.ID, entry.Packet.ID, reason)
	}

	o.sleepBlackout(ctx)
}

func (o *Orchestrator) recordFailure(targetID, packetID, reason string) {
	if _, err := o.Outbox.MarkFailed(packetID, false); err != nil {
		log.Errorf("relay: mark failed: %v", err)
	}
	o.Stats.RecordFailure(targetID)
	o.consecutiveFailures++
	o.emit(Event{Kind: EventFailure, PacketID: packetID, Target: targetID, Reason: reason})

	if o.consecutiveFailures >= MaxConsecutiveFailures {
		o.pausedUntil = o.now().Add(PauseDuration)
		o.emit(Event{Kind: EventPaused})
	}
}

func (o *Orchestrator) failAllPendingSOS() {
	entries, err := o.Outbox.AllEntries()
	if err != nil {
		log.Errorf("relay: all entries: %v", err)
		return
	}
	for _, e := range entries {
		if e.Status == mesh.StatusPending && e.Packet.IsSOSClass() {
			if _, err := o.Outbox.MarkFailed(e.Packet.ID, true); err != nil {
				log.Errorf("relay: mark failed (no candidate): %v", err)
			}
		}
	}
}

func (o *Orchestrator) deliverLocalSOS(ctx context.Context) {
	if o.Uploader == nil {
		return
	}
	entries, err := o.Outbox.AllEntries()
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Status != mesh.StatusPending || !e.Packet.IsSOSClass() {
			continue
		}
		if !o.HasInternet() {
			return
		}
		if err := o.Uploader.Upload(ctx, e.Packet); err != nil {
			log.Warnf("relay: local-delivery upload failed for %s: %v", e.Packet.ID, err)
			continue
		}
		if err := o.Outbox.MarkSent(e.Packet.ID); err != nil {
			log.Errorf("relay: mark sent after local delivery: %v", err)
		}
	}
}

func (o *Orchestrator) sleepBlackout(ctx context.Context) {
	t := time.NewTimer(PostSendBlackout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run starts the periodic tick loop; it blocks until ctx is cancelled,
// matching SPTP.runInternal's timer-driven select loop.
func (o *Orchestrator) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(RelayInterval)
			o.Tick(ctx)
		}
	}
}
