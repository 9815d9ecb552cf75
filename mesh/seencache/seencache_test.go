package seencache

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryCheckAndInsert(t *testing.T) {
	c := NewMemory(3)
	require.True(t, c.CheckAndInsert("a"))
	require.False(t, c.CheckAndInsert("a"))
	require.True(t, c.CheckAndInsert("b"))
}

func TestMemoryBoundedWithEviction(t *testing.T) {
	c := NewMemory(2)
	require.True(t, c.CheckAndInsert("a"))
	require.True(t, c.CheckAndInsert("b"))
	require.True(t, c.CheckAndInsert("c")) // evicts "a"
	require.LessOrEqual(t, c.Len(), 2)
	// "a" was evicted, so it is treated as new again.
	require.True(t, c.CheckAndInsert("a"))
}

func TestMemoryNeverExceedsCapacity(t *testing.T) {
	c := NewMemory(10)
	for i := 0; i < 1000; i++ {
		c.CheckAndInsert(fmt.Sprintf("id-%d", i))
		require.LessOrEqual(t, c.Len(), 10)
	}
}

func TestBoltCheckAndInsert(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBolt(filepath.Join(dir, "seen.db"), 2)
	require.NoError(t, err)
	defer b.Close()

	require.True(t, b.CheckAndInsert("a"))
	require.False(t, b.CheckAndInsert("a"))
	require.True(t, b.CheckAndInsert("b"))
	require.True(t, b.CheckAndInsert("c")) // evicts "a"
	require.LessOrEqual(t, b.Len(), 2)
	require.True(t, b.CheckAndInsert("a"))
}

func TestBoltSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seen.db")

	b, err := OpenBolt(path, 100)
	require.NoError(t, err)
	require.True(t, b.CheckAndInsert("p1"))
	require.NoError(t, b.Close())

	reopened, err := OpenBolt(path, 100)
	require.NoError(t, err)
	defer reopened.Close()
	require.False(t, reopened.CheckAndInsert("p1"))
}
