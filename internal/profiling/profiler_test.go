package profiling

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	p := NewProfiler()
	cleanup, err := p.StartCPU(path)
	require.NoError(t, err)
	cleanup()

	info, err := filepath.Glob(path)
	require.NoError(t, err)
	assert.Len(t, info, 1)
}

func TestCPUProfileBadPath(t *testing.T) {
	_, err := NewProfiler().StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	require.Error(t, err)
}

func TestWriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")
	require.NoError(t, NewProfiler().WriteHeap(path))
	assert.FileExists(t, path)
}

func TestTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.out")

	cleanup, err := NewProfiler().StartTrace(path)
	require.NoError(t, err)
	cleanup()
	assert.FileExists(t, path)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.00 KB", FormatBytes(1024))
	assert.Equal(t, "2.50 MB", FormatBytes(2*1024*1024+512*1024))
	assert.Equal(t, "1.00 GB", FormatBytes(1024*1024*1024))
}

func TestMemStats(t *testing.T) {
	m := MemStats()
	assert.NotZero(t, m.Sys)
}
