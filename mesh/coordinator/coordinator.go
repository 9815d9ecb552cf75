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

// Package coordinator implements the mesh lifecycle owner (component C9):
// it wires the other eight components together and exposes the engine's
// public API, the way the teacher's ptp4u Server owns its Config, clock,
// and worker pool and exposes Start/Stop.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/ingress"
	"github.com/fieldrelay/mesh/nodetable"
	"github.com/fieldrelay/mesh/outbox"
	"github.com/fieldrelay/mesh/meshstats"
	"github.com/fieldrelay/mesh/packet"
	"github.com/fieldrelay/mesh/relay"
	"github.com/fieldrelay/mesh/scorer"
	"github.com/fieldrelay/mesh/seencache"
)

// Stats summarizes engine activity for operators, per spec.md §7.
type Stats struct {
	PacketsSent         int
	PacketsFailed       int
	PermanentDrops      int
	Pending             int
	ConsecutiveFailures int
	Paused              bool
}

// Coordinator owns every other component and exposes the engine's public
// API (§6). It is the only type application code (cmd/meshnode) talks to
// directly.
type Coordinator struct {
	nodeID string

	outbox     outbox.Outbox
	neighbors  *nodetable.Neighbors
	processor  *ingress.Processor
	orchestr   *relay.Orchestrator
	transport  mesh.Transport
	connective mesh.ConnectivityProbe
	uploader   relay.CloudUploader
	counters   *meshstats.Counters

	mu               sync.RWMutex
	selfHasInternet  bool
	permanentDrops   int
	neighborSubsList []chan []mesh.NodeInfo
	packetSubsList   []chan mesh.Packet
	sosSubsList      []chan mesh.Packet

	events chan relay.Event

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Deps collects the inbound collaborators the coordinator requires,
// mirroring spec.md §6's "Inbound collaborators" list.
type Deps struct {
	Transport     mesh.Transport
	Connectivity  mesh.ConnectivityProbe
	Uploader      relay.CloudUploader
	Outbox        outbox.Outbox
	Formula       *scorer.Formula
	SeenCacheSize int
}

// New builds a Coordinator for nodeID. Call Start to begin processing.
func New(nodeID string, deps Deps) *Coordinator {
	ob := deps.Outbox
	if ob == nil {
		ob = outbox.NewMemory()
	}
	neighbors := nodetable.NewNeighbors()
	cacheSize := deps.SeenCacheSize
	if cacheSize <= 0 {
		cacheSize = seencache.DefaultCapacity
	}
	seen := seencache.NewMemory(cacheSize)

	orch := relay.NewOrchestrator(nodeID, neighbors, ob, transportAdapter{deps.Transport})
	orch.Uploader = deps.Uploader
	orch.Formula = deps.Formula

	c := &Coordinator{
		nodeID:     nodeID,
		outbox:     ob,
		neighbors:  neighbors,
		processor:  ingress.NewProcessor(seen, nodeID),
		orchestr:   orch,
		transport:  deps.Transport,
		connective: deps.Connectivity,
		uploader:   deps.Uploader,
		counters:   &meshstats.Counters{},
		events:     make(chan relay.Event, 64),
	}
	orch.Events = c.events
	orch.HasInternet = c.HasInternet
	return c
}

// NewPacketID mints a UUID for SendSOS/SendPacket callers, per spec.md §3
// ("opaque string, globally unique (UUID-like)").
func NewPacketID() string {
	return uuid.NewString()
}

// transportAdapter narrows mesh.Transport to relay.Transport.
type transportAdapter struct {
	t mesh.Transport
}

func (a transportAdapter) ConnectAndSend(ctx context.Context, deviceAddress string, payload []byte) (*mesh.TransmissionResult, error) {
	return a.t.ConnectAndSend(ctx, deviceAddress, payload)
}

// Initialize starts the transport's mesh node under nodeID, advertising
// metadata. Must be called before Start. Durable outbox recovery is not done
// here; it runs when the outbox is opened (outbox.OpenBolt).
func (c *Coordinator) Initialize(ctx context.Context, metadata map[string]string) error {
	if err := c.transport.StartMeshNode(ctx, c.nodeID, metadata); err != nil {
		return mesh.Wrap(mesh.KindNetwork, "coordinator.Initialize", err)
	}
	return nil
}

// Start begins all background tasks: relay tick loop, ingress consumer,
// discovery listener, connectivity watcher, and sweep tasks. It returns
// once every task goroutine has been launched; call Stop to shut down.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	eg, egCtx := errgroup.WithContext(runCtx)
	c.group = eg

	eg.Go(func() error {
		c.orchestr.Run(egCtx)
		return nil
	})
	eg.Go(func() error {
		c.consumeIngress(egCtx)
		return nil
	})
	eg.Go(func() error {
		c.consumeDiscovery(egCtx)
		return nil
	})
	eg.Go(func() error {
		c.neighbors.Run(egCtx.Done(), nil)
		return nil
	})
	eg.Go(func() error {
		c.sweepOutboxExpiry(egCtx)
		return nil
	})
	if c.connective != nil {
		eg.Go(func() error {
			c.watchConnectivity(egCtx)
			return nil
		})
	}
	eg.Go(func() error {
		c.fanOutEvents(egCtx)
		return nil
	})
}

// Stop reverses Start: cancels every background task and waits for them to
// exit, stops the transport, then closes subscriber channels.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		_ = c.group.Wait()
	}
	if err := c.transport.Stop(context.Background()); err != nil {
		log.Errorf("coordinator: transport stop: %v", err)
	}
	c.closeSubscribers()
}

// Close is the lifecycle inverse of Initialize+Start.
func (c *Coordinator) Close() {
	c.Stop()
}

func (c *Coordinator) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.neighborSubsList {
		close(ch)
	}
	for _, ch := range c.packetSubsList {
		close(ch)
	}
	for _, ch := range c.sosSubsList {
		close(ch)
	}
	c.neighborSubsList = nil
	c.packetSubsList = nil
	c.sosSubsList = nil
}

// HasInternet reports the coordinator's last-observed connectivity state.
func (c *Coordinator) HasInternet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfHasInternet
}

func (c *Coordinator) setHasInternet(v bool) {
	c.mu.Lock()
	c.selfHasInternet = v
	c.mu.Unlock()
}

// SendSOS enqueues a new SOS packet originated by this node and returns its
// ID.
func (c *Coordinator) SendSOS(payload []byte) (string, error) {
	id := NewPacketID()
	p := mesh.Packet{
		ID:           id,
		OriginatorID: c.nodeID,
		Payload:      payload,
		Trace:        []string{c.nodeID},
		TTL:          mesh.MaxTTL,
		CreatedAt:    time.Now().UnixMilli(),
		Priority:     mesh.SOSPriority,
		Type:         mesh.PacketSOS,
	}
	if err := c.outbox.Enqueue(p); err != nil {
		return "", err
	}
	return id, nil
}

// SendPacket enqueues an arbitrary caller-constructed packet.
func (c *Coordinator) SendPacket(p mesh.Packet) (bool, error) {
	if err := packet.Validate(&p); err != nil {
		return false, err
	}
	if err := c.outbox.Enqueue(p); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentNode returns this node's own NodeInfo, if it has recorded one via
// UpdateMetadata.
func (c *Coordinator) CurrentNode() (mesh.NodeInfo, bool) {
	return c.neighbors.Get(c.nodeID)
}

// UpdateMetadata updates this node's own advertised NodeInfo and pushes it
// to the transport layer.
func (c *Coordinator) UpdateMetadata(info mesh.NodeInfo) error {
	info.ID = c.nodeID
	c.neighbors.UpsertInfo(info)
	return c.transport.UpdateMetadata(context.Background(), ToTXTRecord(info))
}

// PendingPackets returns every outbox entry not yet in a terminal state,
// for UI display of in-flight traffic.
func (c *Coordinator) PendingPackets() ([]mesh.OutboxEntry, error) {
	all, err := c.outbox.AllEntries()
	if err != nil {
		return nil, err
	}
	out := make([]mesh.OutboxEntry, 0, len(all))
	for _, e := range all {
		if e.Status == mesh.StatusPending || e.Status == mesh.StatusInProgress {
			out = append(out, e)
		}
	}
	return out, nil
}

// SubscribeNeighbors returns a channel receiving the fresh neighbor list
// whenever it changes.
func (c *Coordinator) SubscribeNeighbors() <-chan []mesh.NodeInfo {
	ch := make(chan []mesh.NodeInfo, 8)
	c.mu.Lock()
	c.neighborSubsList = append(c.neighborSubsList, ch)
	c.mu.Unlock()
	return ch
}

// SubscribePackets returns a channel receiving every post-validation
// inbound packet.
func (c *Coordinator) SubscribePackets() <-chan mesh.Packet {
	ch := make(chan mesh.Packet, 32)
	c.mu.Lock()
	c.packetSubsList = append(c.packetSubsList, ch)
	c.mu.Unlock()
	return ch
}

// SubscribeSOSAlerts returns a channel receiving only inbound SOS packets.
func (c *Coordinator) SubscribeSOSAlerts() <-chan mesh.Packet {
	ch := make(chan mesh.Packet, 32)
	c.mu.Lock()
	c.sosSubsList = append(c.sosSubsList, ch)
	c.mu.Unlock()
	return ch
}

// Counters exposes the raw counter set for Prometheus/JSON export.
func (c *Coordinator) Counters() *meshstats.Counters {
	return c.counters
}

// Stats returns a snapshot of engine counters.
func (c *Coordinator) Stats() Stats {
	obStats, err := c.outbox.Stats()
	if err != nil {
		log.Errorf("coordinator: stats: %v", err)
	}
	c.mu.RLock()
	drops := c.permanentDrops
	c.mu.RUnlock()
	return Stats{
		PacketsSent:         obStats.Sent,
		PacketsFailed:       obStats.Failed,
		PermanentDrops:      drops,
		Pending:             obStats.Pending + obStats.InProgress,
		ConsecutiveFailures: c.orchestr.ConsecutiveFailures(),
		Paused:              c.orchestr.Paused(),
	}
}

func (c *Coordinator) consumeIngress(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-c.transport.PacketsReceived():
			if !ok {
				return
			}
			c.handleInbound(raw)
		}
	}
}

func (c *Coordinator) handleInbound(raw []byte) {
	p, err := packet.Decode(raw)
	if err != nil {
		log.Warnf("coordinator: dropping malformed packet: %v", err)
		return
	}
	result := c.processor.Process(*p, c.HasInternet())
	switch result.Outcome {
	case ingress.OutcomeDrop:
		switch result.Reason {
		case ingress.DropDuplicate:
			c.counters.IncPacketsDuplicate()
		case ingress.DropExpired:
			c.counters.IncPacketsExpired()
			c.mu.Lock()
			c.permanentDrops++
			c.mu.Unlock()
		default:
			c.counters.IncPacketsDropped()
			c.mu.Lock()
			c.permanentDrops++
			c.mu.Unlock()
		}
		return
	case ingress.OutcomeDeliver:
		c.counters.IncPacketsDelivered()
		c.deliverToCloud(result.Packet)
		c.broadcastPacket(result.Packet)
		c.broadcastSOS(result.Packet)
		return
	case ingress.OutcomeForward:
		if err := c.outbox.Enqueue(result.Packet); err != nil {
			log.Errorf("coordinator: enqueue forwarded packet: %v", err)
		}
		c.counters.IncPacketsForwarded()
		c.broadcastPacket(result.Packet)
		if result.Packet.Type == mesh.PacketSOS {
			c.broadcastSOS(result.Packet)
		}
	}
}

// deliverToCloud hands a directly-deliverable SOS packet to the cloud
// uploader, re-verifying connectivity immediately before the call per
// spec.md §6's contract, the same re-check relay.Orchestrator.deliverLocalSOS
// performs before each local-delivery upload.
func (c *Coordinator) deliverToCloud(p mesh.Packet) {
	if c.uploader == nil || !c.HasInternet() {
		return
	}
	if err := c.uploader.Upload(context.Background(), p); err != nil {
		log.Warnf("coordinator: cloud upload failed for %s: %v", p.ID, err)
	}
}

func (c *Coordinator) broadcastPacket(p mesh.Packet) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.packetSubsList {
		select {
		case ch <- p:
		default:
		}
	}
}

func (c *Coordinator) broadcastSOS(p mesh.Packet) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.sosSubsList {
		select {
		case ch <- p:
		default:
		}
	}
}

func (c *Coordinator) consumeDiscovery(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case infos, ok := <-c.transport.Neighbors():
			if !ok {
				return
			}
			for _, info := range infos {
				c.neighbors.UpsertInfo(info)
			}
			c.broadcastNeighbors(c.neighbors.AllFresh())
		}
	}
}

func (c *Coordinator) broadcastNeighbors(infos []mesh.NodeInfo) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.neighborSubsList {
		select {
		case ch <- infos:
		default:
		}
	}
}

func (c *Coordinator) watchConnectivity(ctx context.Context) {
	sub := c.connective.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub:
			if !ok {
				return
			}
			c.setHasInternet(v)
			if info, found := c.CurrentNode(); found {
				info.HasInternet = v
				_ = c.UpdateMetadata(info)
			}
		}
	}
}

func (c *Coordinator) sweepOutboxExpiry(ctx context.Context) {
	ticker := time.NewTicker(outbox.ExpirySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.outbox.ExpirePending(time.Now())
			if err != nil {
				log.Errorf("coordinator: expire pending: %v", err)
				continue
			}
			if removed > 0 {
				for i := 0; i < removed; i++ {
					c.counters.IncOutboxPermanentFail()
				}
				c.mu.Lock()
				c.permanentDrops += removed
				c.mu.Unlock()
			}
		}
	}
}

func (c *Coordinator) fanOutEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.events:
			if !ok {
				return
			}
			switch e.Kind {
			case relay.EventSuccess:
				c.counters.IncSendsSucceeded()
			case relay.EventFailure:
				c.counters.IncSendsFailed()
				log.Debugf("relay event: %s packet=%s target=%s reason=%s", e.Kind, e.PacketID, e.Target, e.Reason)
			case relay.EventPaused:
				c.counters.IncOrchestratorPauses()
				log.Warn("relay orchestrator paused after consecutive failures")
			}
		}
	}
}
