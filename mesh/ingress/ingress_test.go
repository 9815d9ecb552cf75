package ingress

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/seencache"
)

func dataPacket(id string) mesh.Packet {
	return mesh.Packet{
		ID:           id,
		OriginatorID: "origin",
		Trace:        []string{"origin"},
		TTL:          5,
		Type:         mesh.PacketData,
	}
}

func TestProcessDropsDuplicate(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("p1")

	first := proc.Process(p, false)
	require.Equal(t, OutcomeForward, first.Outcome)

	second := proc.Process(p, false)
	require.Equal(t, OutcomeDrop, second.Outcome)
	require.Equal(t, DropDuplicate, second.Reason)
}

func TestProcessDropsInvalidTrace(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("p1")
	p.Trace = []string{"someone-else"}

	result := proc.Process(p, false)
	require.Equal(t, OutcomeDrop, result.Outcome)
	require.Equal(t, DropInvalid, result.Reason)
}

func TestProcessDeliversSOSWhenSelfHasInternet(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("sos1")
	p.Type = mesh.PacketSOS

	result := proc.Process(p, true)
	require.Equal(t, OutcomeDeliver, result.Outcome)
}

func TestProcessDropsExpiredTTL(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("p1")
	p.TTL = 0

	result := proc.Process(p, false)
	require.Equal(t, OutcomeDrop, result.Outcome)
	require.Equal(t, DropExpired, result.Reason)
}

func TestProcessForwardsAppendsTraceAndDecrementsTTL(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("p1")

	result := proc.Process(p, false)
	require.Equal(t, OutcomeForward, result.Outcome)
	require.Equal(t, []string{"origin", "self"}, result.Packet.Trace)
	require.Equal(t, 4, result.Packet.TTL)
}

func TestProcessDropsWhenSelfAlreadyInTrace(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "A")
	p := dataPacket("p1")
	p.OriginatorID = "B"
	p.Trace = []string{"B", "A", "C"}

	result := proc.Process(p, false)
	require.Equal(t, OutcomeDrop, result.Outcome)
	require.Equal(t, DropInvalid, result.Reason)
}

func TestProcessSOSWithoutInternetFallsThroughToForward(t *testing.T) {
	proc := NewProcessor(seencache.NewMemory(10), "self")
	p := dataPacket("sos1")
	p.Type = mesh.PacketSOS

	result := proc.Process(p, false)
	require.Equal(t, OutcomeForward, result.Outcome)
}
