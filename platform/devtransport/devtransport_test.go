package devtransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectAndSendDeliversToPacketsReceived(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := New("127.0.0.1:0", 2)
	require.NoError(t, server.StartMeshNode(ctx, "server", map[string]string{"bat": "90"}))
	defer server.Stop(ctx)

	// StartMeshNode binds an ephemeral port for "127.0.0.1:0"; dial back
	// through the address the listener actually bound.
	addr := server.listener.Addr().String()

	client := New("127.0.0.1:0", 2)
	require.NoError(t, client.StartMeshNode(ctx, "client", nil))
	defer client.Stop(ctx)

	result, err := client.ConnectAndSend(ctx, addr, []byte("hello-mesh"))
	require.NoError(t, err)
	require.True(t, result.Success)

	select {
	case payload := <-server.PacketsReceived():
		require.Equal(t, []byte("hello-mesh"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet delivery")
	}
}

func TestConnectAndSendReportsFailureOnUnreachableTarget(t *testing.T) {
	ctx := context.Background()
	client := New("127.0.0.1:0", 2)
	require.NoError(t, client.StartMeshNode(ctx, "client", nil))
	defer client.Stop(ctx)

	result, err := client.ConnectAndSend(ctx, "127.0.0.1:1", []byte("x"))
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestAnnounceRecordsNeighbor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := New("127.0.0.1:0", 2)
	require.NoError(t, server.StartMeshNode(ctx, "server", nil))
	defer server.Stop(ctx)
	serverAddr := server.listener.Addr().String()

	client := New("127.0.0.1:0", 2)
	require.NoError(t, client.StartMeshNode(ctx, "client", map[string]string{"bat": "55", "net": "1"}))
	defer client.Stop(ctx)

	client.AddPeer(serverAddr)
	client.announceOnce()

	select {
	case neighbors := <-server.Neighbors():
		require.Len(t, neighbors, 1)
		require.Equal(t, "client", neighbors[0].ID)
		require.Equal(t, 55, neighbors[0].BatteryLevel)
		require.True(t, neighbors[0].HasInternet)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for neighbor announcement")
	}
}
