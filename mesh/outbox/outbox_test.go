package outbox

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldrelay/mesh"
)

func normalPacket(id string, priority int) mesh.Packet {
	return mesh.Packet{
		ID:           id,
		OriginatorID: "n1",
		Trace:        []string{"n1"},
		TTL:          10,
		Priority:     priority,
		Type:         mesh.PacketData,
	}
}

func sosPacket(id string) mesh.Packet {
	p := normalPacket(id, mesh.SOSPriority)
	p.Type = mesh.PacketSOS
	return p
}

func TestMemoryPriorityOrdering(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(normalPacket("low", 0)))
	require.NoError(t, m.Enqueue(normalPacket("high", 3)))
	require.NoError(t, m.Enqueue(normalPacket("mid", 1)))

	e, ok := m.NextPending()
	require.True(t, ok)
	require.Equal(t, "high", e.Packet.ID)
}

func TestMemoryFIFOOnTies(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(normalPacket("first", 1)))
	require.NoError(t, m.Enqueue(normalPacket("second", 1)))

	e, ok := m.NextPending()
	require.True(t, ok)
	require.Equal(t, "first", e.Packet.ID)
}

func TestMemoryRetryMonotonicity(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(normalPacket("p1", 0)))

	for i := 0; i < MaxRetries-1; i++ {
		canRetry, err := m.MarkFailed("p1", false)
		require.NoError(t, err)
		require.True(t, canRetry)
	}
	canRetry, err := m.MarkFailed("p1", false)
	require.NoError(t, err)
	require.False(t, canRetry)

	entries, err := m.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, mesh.StatusFailed, entries[0].Status)
	require.Equal(t, MaxRetries, entries[0].RetryCount)
}

func TestMemoryTransientSOSDoesNotCountAgainstRetries(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(sosPacket("sos1")))

	for i := 0; i < MaxSOSRetries+5; i++ {
		canRetry, err := m.MarkFailed("sos1", true)
		require.NoError(t, err)
		require.True(t, canRetry)
	}

	entries, err := m.AllEntries()
	require.NoError(t, err)
	require.Equal(t, 0, entries[0].RetryCount)
	require.Equal(t, mesh.StatusPending, entries[0].Status)
}

func TestMemorySOSHonorsHigherRetryCeiling(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(sosPacket("sos1")))

	for i := 0; i < MaxSOSRetries-1; i++ {
		canRetry, err := m.MarkFailed("sos1", false)
		require.NoError(t, err)
		require.True(t, canRetry)
	}
	canRetry, err := m.MarkFailed("sos1", false)
	require.NoError(t, err)
	require.False(t, canRetry)
}

func TestMemoryCrashRecoveryResetsInProgress(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(normalPacket("p1", 0)))
	require.NoError(t, m.Enqueue(normalPacket("p2", 0)))
	require.NoError(t, m.MarkInProgress("p1"))
	require.NoError(t, m.MarkSent("p2"))

	n := m.recoverInProgress()
	require.Equal(t, 1, n)

	entries, err := m.AllEntries()
	require.NoError(t, err)
	for _, e := range entries {
		if e.Packet.ID == "p1" {
			require.Equal(t, mesh.StatusPending, e.Status)
		}
		if e.Packet.ID == "p2" {
			require.Equal(t, mesh.StatusSent, e.Status)
		}
	}
}

func TestMemoryExpiryUsesTypeSpecificTTL(t *testing.T) {
	m := NewMemory()
	base := time.Now().Add(-20 * time.Minute)
	m.nowFn = func() time.Time { return base }
	require.NoError(t, m.Enqueue(sosPacket("sos1")))
	require.NoError(t, m.Enqueue(normalPacket("n1", 0)))

	removed, err := m.ExpirePending(base.Add(20 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, removed) // only the SOS entry exceeds its 10m ttl

	entries, err := m.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "n1", entries[0].Packet.ID)
}

func TestBoltCrashRecoveryOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outbox.db")

	b, recovered, err := OpenBolt(path)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)

	require.NoError(t, b.Enqueue(normalPacket("p1", 0)))
	require.NoError(t, b.Enqueue(normalPacket("p2", 0)))
	require.NoError(t, b.MarkInProgress("p1"))
	require.NoError(t, b.MarkSent("p2"))
	require.NoError(t, b.Close())

	reopened, recovered, err := OpenBolt(path)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)
	defer reopened.Close()

	entries, err := reopened.AllEntries()
	require.NoError(t, err)
	statuses := map[string]mesh.OutboxStatus{}
	for _, e := range entries {
		statuses[e.Packet.ID] = e.Status
	}
	require.Equal(t, mesh.StatusPending, statuses["p1"])
	require.Equal(t, mesh.StatusSent, statuses["p2"])
}

func TestBoltRetryAndFailurePolicy(t *testing.T) {
	dir := t.TempDir()
	b, _, err := OpenBolt(filepath.Join(dir, "outbox.db"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Enqueue(sosPacket("sos1")))
	for i := 0; i < MaxSOSRetries+3; i++ {
		canRetry, err := b.MarkFailed("sos1", true)
		require.NoError(t, err)
		require.True(t, canRetry)
	}
	entries, err := b.AllEntries()
	require.NoError(t, err)
	require.Equal(t, 0, entries[0].RetryCount)
}

func TestBoltNextPendingPriorityOrdering(t *testing.T) {
	dir := t.TempDir()
	b, _, err := OpenBolt(filepath.Join(dir, "outbox.db"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Enqueue(normalPacket("low", 0)))
	require.NoError(t, b.Enqueue(normalPacket("high", 3)))

	e, ok := b.NextPending()
	require.True(t, ok)
	require.Equal(t, "high", e.Packet.ID)
}
