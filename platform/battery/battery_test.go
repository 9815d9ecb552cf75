package battery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelReadsSysfsCapacity(t *testing.T) {
	dir := t.TempDir()
	batDir := filepath.Join(dir, "BAT0")
	require.NoError(t, os.MkdirAll(batDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batDir, "capacity"), []byte("42\n"), 0o644))

	r := &Reader{root: dir}
	level, err := r.Level(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, level)
}

func TestLevelDefaultsTo100WhenNoPowerSupplyTree(t *testing.T) {
	r := &Reader{root: filepath.Join(t.TempDir(), "does-not-exist")}
	level, err := r.Level(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, level)
}

func TestLevelClampsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	batDir := filepath.Join(dir, "BAT1")
	require.NoError(t, os.MkdirAll(batDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batDir, "capacity"), []byte("142\n"), 0o644))

	r := &Reader{root: dir}
	level, err := r.Level(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, level)
}
