package profiling_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/profiling"
)

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	stop, err := profiling.StartCPUProfile(cpu)
	require.NoError(t, err)
	require.NoError(t, stop())
	require.NoError(t, profiling.CaptureMemoryProfile(mem))

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestProfileInMissingDirectory(t *testing.T) {
	_, err := profiling.StartCPUProfile(filepath.Join(t.TempDir(), "missing", "cpu.pprof"))
	assert.Error(t, err)
	assert.Error(t, profiling.CaptureMemoryProfile(filepath.Join(t.TempDir(), "missing", "mem.pprof")))
}
