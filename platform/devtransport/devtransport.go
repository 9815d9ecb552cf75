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

// Package devtransport is a loopback-TCP stand-in for the platform-native
// mesh transport (Wi-Fi Direct / DNS-SD on mobile). It is used by the CLI
// demo and integration tests to run several mesh.Transport instances on one
// host. The listener + fixed worker-pool shape is modeled directly on
// responder/server.Server.Start/startListener.
package devtransport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fieldrelay/mesh"
)

// AnnounceInterval is how often a node re-broadcasts its metadata to known
// peers, mirroring the discovery refresh cadence in mesh/nodetable.
const AnnounceInterval = 60 * time.Second

// DialTimeout bounds a single ConnectAndSend attempt's TCP dial.
const DialTimeout = 3 * time.Second

// hello is the wire envelope a node announces itself with; helloFrame
// carries it over the same length-prefixed framing as packet payloads, but
// tagged so a listener can tell them apart.
type hello struct {
	NodeID string            `json:"node_id"`
	Addr   string            `json:"addr"`
	Meta   map[string]string `json:"meta"`
}

const frameKindPacket = byte(0)
const frameKindHello = byte(1)

// Transport implements mesh.Transport over plain TCP sockets on the loopback
// interface, with a static peer list supplied by the operator (there is no
// real radio to discover peers with).
type Transport struct {
	ListenAddr string
	Workers    int

	nodeID   string
	metadata map[string]string

	mu    sync.Mutex
	peers map[string]string // peerAddr -> last-known nodeID

	listener net.Listener

	packets chan []byte
	neigh   chan []mesh.NodeInfo

	neighTable map[string]mesh.NodeInfo

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Transport. Workers defaults to 4 if <= 0, mirroring the
// teacher's Server.Workers knob.
func New(listenAddr string, workers int) *Transport {
	if workers <= 0 {
		workers = 4
	}
	return &Transport{
		ListenAddr: listenAddr,
		Workers:    workers,
		peers:      map[string]string{},
		neighTable: map[string]mesh.NodeInfo{},
		packets:    make(chan []byte, 64),
		neigh:      make(chan []mesh.NodeInfo, 8),
	}
}

// AddPeer registers a static peer address this node should announce to and
// treat as a candidate relay target. Call before StartMeshNode.
func (t *Transport) AddPeer(addr string) {
	t.mu.Lock()
	t.peers[addr] = ""
	t.mu.Unlock()
}

// StartMeshNode opens the listener, launches the fixed worker pool that
// drains accepted connections, and starts the periodic peer announcer.
func (t *Transport) StartMeshNode(ctx context.Context, nodeID string, metadata map[string]string) error {
	t.nodeID = nodeID
	t.metadata = metadata

	ln, err := net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return fmt.Errorf("devtransport: listen %s: %w", t.ListenAddr, err)
	}
	t.listener = ln
	t.ListenAddr = ln.Addr().String()

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	log.Infof("devtransport: node %s listening on %s with %d workers", nodeID, ln.Addr(), t.Workers)

	conns := make(chan net.Conn, t.Workers)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.acceptLoop(runCtx, conns)
	}()
	for i := 0; i < t.Workers; i++ {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.worker(runCtx, conns)
		}()
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.announceLoop(runCtx)
	}()

	return nil
}

func (t *Transport) acceptLoop(ctx context.Context, conns chan<- net.Conn) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warnf("devtransport: accept: %v", err)
				return
			}
		}
		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (t *Transport) worker(ctx context.Context, conns <-chan net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case conn, ok := <-conns:
			if !ok {
				return
			}
			t.handleConn(conn)
		}
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	defer conn.Close()
	kind, payload, err := readFrame(conn)
	if err != nil {
		if err != io.EOF {
			log.Debugf("devtransport: read frame: %v", err)
		}
		return
	}
	switch kind {
	case frameKindHello:
		var h hello
		if err := json.Unmarshal(payload, &h); err != nil {
			log.Warnf("devtransport: malformed hello: %v", err)
			return
		}
		t.recordPeer(h)
	case frameKindPacket:
		select {
		case t.packets <- payload:
		default:
			log.Warnf("devtransport: packet inbound buffer full, dropping")
		}
	}
}

func (t *Transport) recordPeer(h hello) {
	info := fromHello(h)
	t.mu.Lock()
	t.peers[h.Addr] = h.NodeID
	t.neighTable[h.NodeID] = info
	snapshot := make([]mesh.NodeInfo, 0, len(t.neighTable))
	for _, n := range t.neighTable {
		snapshot = append(snapshot, n)
	}
	t.mu.Unlock()

	select {
	case t.neigh <- snapshot:
	default:
	}
}

func fromHello(h hello) mesh.NodeInfo {
	info := mesh.NodeInfo{ID: h.NodeID, DeviceAddress: h.Addr, LastSeen: time.Now()}
	if v, ok := h.Meta["bat"]; ok {
		fmt.Sscanf(v, "%d", &info.BatteryLevel)
	}
	info.HasInternet = h.Meta["net"] == "1"
	info.AvailableForRelay = h.Meta["rel"] == "1"
	return info
}

func (t *Transport) announceLoop(ctx context.Context) {
	t.announceOnce()
	ticker := time.NewTicker(AnnounceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.announceOnce()
		}
	}
}

func (t *Transport) announceOnce() {
	t.mu.Lock()
	addrs := make([]string, 0, len(t.peers))
	for a := range t.peers {
		addrs = append(addrs, a)
	}
	meta := t.metadata
	t.mu.Unlock()

	h := hello{NodeID: t.nodeID, Addr: t.ListenAddr, Meta: meta}
	body, err := json.Marshal(h)
	if err != nil {
		log.Errorf("devtransport: marshal hello: %v", err)
		return
	}
	for _, addr := range addrs {
		if err := sendFrame(addr, frameKindHello, body, DialTimeout); err != nil {
			log.Debugf("devtransport: announce to %s: %v", addr, err)
		}
	}
}

// UpdateMetadata replaces this node's advertised metadata and re-announces
// immediately.
func (t *Transport) UpdateMetadata(ctx context.Context, metadata map[string]string) error {
	t.mu.Lock()
	t.metadata = metadata
	t.mu.Unlock()
	t.announceOnce()
	return nil
}

// ConnectAndSend dials deviceAddress and writes payload as a single framed
// packet message.
func (t *Transport) ConnectAndSend(ctx context.Context, deviceAddress string, payload []byte) (*mesh.TransmissionResult, error) {
	deadline := DialTimeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}
	if err := sendFrame(deviceAddress, frameKindPacket, payload, deadline); err != nil {
		return &mesh.TransmissionResult{Success: false, Target: deviceAddress, ErrorCode: "connect_failed", ErrorMessage: err.Error()}, nil
	}
	return &mesh.TransmissionResult{Success: true, Target: deviceAddress}, nil
}

func sendFrame(addr string, kind byte, payload []byte, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	return writeFrame(conn, kind, payload)
}

func writeFrame(w io.Writer, kind byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = kind
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return header[0], payload, nil
}

// Neighbors delivers neighbor-table snapshots as peers announce themselves.
func (t *Transport) Neighbors() <-chan []mesh.NodeInfo { return t.neigh }

// PacketsReceived delivers raw inbound packet bytes.
func (t *Transport) PacketsReceived() <-chan []byte { return t.packets }

// Stop closes the listener and waits for all worker goroutines to exit.
func (t *Transport) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.listener != nil {
		_ = t.listener.Close()
	}
	t.wg.Wait()
	return nil
}
