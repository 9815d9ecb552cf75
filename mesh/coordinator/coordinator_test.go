package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/packet"
	"github.com/fieldrelay/mesh/seencache"
)

type fakeTransport struct {
	neighbors chan []mesh.NodeInfo
	packets   chan []byte
	sent      []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		neighbors: make(chan []mesh.NodeInfo, 4),
		packets:   make(chan []byte, 4),
	}
}

func (f *fakeTransport) StartMeshNode(ctx context.Context, nodeID string, metadata map[string]string) error {
	return nil
}
func (f *fakeTransport) UpdateMetadata(ctx context.Context, metadata map[string]string) error {
	return nil
}
func (f *fakeTransport) ConnectAndSend(ctx context.Context, deviceAddress string, payload []byte) (*mesh.TransmissionResult, error) {
	f.sent = append(f.sent, deviceAddress)
	return &mesh.TransmissionResult{Success: true, Target: deviceAddress}, nil
}
func (f *fakeTransport) Neighbors() <-chan []mesh.NodeInfo { return f.neighbors }
func (f *fakeTransport) PacketsReceived() <-chan []byte    { return f.packets }
func (f *fakeTransport) Stop(ctx context.Context) error    { return nil }

func TestSendSOSEnqueuesPendingPacket(t *testing.T) {
	transport := newFakeTransport()
	c := New("self", Deps{Transport: transport})

	id, err := c.SendSOS([]byte("help"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending, err := c.PendingPackets()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].Packet.ID)
}

func TestUpdateMetadataRecordsCurrentNode(t *testing.T) {
	transport := newFakeTransport()
	c := New("self", Deps{Transport: transport})

	require.NoError(t, c.UpdateMetadata(mesh.NodeInfo{BatteryLevel: 90, HasInternet: true}))

	info, ok := c.CurrentNode()
	require.True(t, ok)
	require.Equal(t, "self", info.ID)
	require.Equal(t, 90, info.BatteryLevel)
}

func TestInboundDuplicatePacketIsDropped(t *testing.T) {
	transport := newFakeTransport()
	c := New("self", Deps{Transport: transport})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	subs := c.SubscribePackets()

	raw := encodeForTest(t, mesh.Packet{
		ID:           "in1",
		OriginatorID: "peer",
		Trace:        []string{"peer"},
		TTL:          5,
		Type:         mesh.PacketData,
	})

	transport.packets <- raw
	select {
	case p := <-subs:
		require.Equal(t, "in1", p.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded packet notification")
	}

	transport.packets <- raw
	select {
	case <-subs:
		t.Fatal("duplicate packet should not be forwarded twice")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewDefaultsSeenCacheSizeWhenUnset(t *testing.T) {
	transport := newFakeTransport()
	c := New("self", Deps{Transport: transport})
	require.NotNil(t, c)

	for i := 0; i < seencache.DefaultCapacity+1; i++ {
		c.processor.Seen.CheckAndInsert(fmt.Sprintf("id-%d", i))
	}
	require.Equal(t, seencache.DefaultCapacity, c.processor.Seen.Len())
}

func TestCountersTrackDeliveredPackets(t *testing.T) {
	transport := newFakeTransport()
	c := New("self", Deps{Transport: transport})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	c.SubscribeSOSAlerts()
	c.setHasInternet(true)

	raw := encodeForTest(t, mesh.Packet{
		ID:           "sos1",
		OriginatorID: "peer",
		Trace:        []string{"peer"},
		TTL:          5,
		Type:         mesh.PacketSOS,
	})
	transport.packets <- raw

	require.Eventually(t, func() bool {
		return c.Counters().Snapshot().PacketsDelivered == 1
	}, 2*time.Second, 10*time.Millisecond)
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []mesh.Packet
}

func (f *fakeUploader) Upload(ctx context.Context, p mesh.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	return nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestInboundSOSDeliveredWhileOnlineInvokesCloudUploaderOnce(t *testing.T) {
	transport := newFakeTransport()
	uploader := &fakeUploader{}
	c := New("self", Deps{Transport: transport, Uploader: uploader})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	c.setHasInternet(true)

	raw := encodeForTest(t, mesh.Packet{
		ID:           "sos2",
		OriginatorID: "peer",
		Trace:        []string{"peer"},
		TTL:          5,
		Type:         mesh.PacketSOS,
	})
	transport.packets <- raw

	require.Eventually(t, func() bool {
		return uploader.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, uploader.count())
}

func encodeForTest(t *testing.T, p mesh.Packet) []byte {
	t.Helper()
	b, err := packet.Encode(&p)
	require.NoError(t, err)
	return b
}
