package routestats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordSuccessAndFailureUpdateMean(t *testing.T) {
	tbl := NewTable()
	tbl.RecordSuccess("n1")
	tbl.RecordSuccess("n1")
	tbl.RecordFailure("n1")

	snap, ok := tbl.Snapshot("n1")
	require.True(t, ok)
	require.Equal(t, 3, snap.Count)
	require.InDelta(t, (RewardSuccess+RewardSuccess+RewardFailure)/3.0, snap.Mean, 0.0001)
}

func TestSnapshotUnknownNeighbor(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Snapshot("unknown")
	require.False(t, ok)
}

func TestSeparateNeighborsTrackedIndependently(t *testing.T) {
	tbl := NewTable()
	tbl.RecordSuccess("a")
	tbl.RecordFailure("b")

	sa, _ := tbl.Snapshot("a")
	sb, _ := tbl.Snapshot("b")
	require.InDelta(t, RewardSuccess, sa.Mean, 0.0001)
	require.InDelta(t, RewardFailure, sb.Mean, 0.0001)
}
