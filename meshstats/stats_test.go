package meshstats

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersSnapshot(t *testing.T) {
	c := &Counters{}
	c.IncPacketsForwarded()
	c.IncPacketsForwarded()
	c.IncPacketsDropped()
	c.IncSendsFailed()

	snap := c.Snapshot()
	require.EqualValues(t, 2, snap.PacketsForwarded)
	require.EqualValues(t, 1, snap.PacketsDropped)
	require.EqualValues(t, 1, snap.SendsFailed)
	require.EqualValues(t, 0, snap.PacketsDelivered)
}

func TestJSONHandlerServesSnapshot(t *testing.T) {
	c := &Counters{}
	c.IncPacketsDelivered()
	h := NewJSONHandler(c)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"packets_delivered":1`)
}
