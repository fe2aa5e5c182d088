// FILE: logveil/src/internal/sink/file_test.go
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logveil/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paddedRecord builds a 40-byte newline-terminated record whose
// prefix identifies it in rotated files.
func paddedRecord(i int) core.Record {
	prefix := fmt.Sprintf("record-%d|", i)
	body := prefix + strings.Repeat("x", 39-len(prefix)) + "\n"
	return rec(core.SeverityInfo, body)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileSinkRotatesWithNumberedBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 100, MaxBackups: 2}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	// 40-byte records against a 100-byte cap: rotation on every
	// third write, three rotations across seven writes.
	for i := 1; i <= 7; i++ {
		require.NoError(t, fs.Write(paddedRecord(i)))
	}

	active := readFile(t, path)
	assert.Contains(t, active, "record-7|")
	assert.NotContains(t, active, "record-6|")

	first := readFile(t, path+".1")
	assert.Contains(t, first, "record-5|")
	assert.Contains(t, first, "record-6|")

	second := readFile(t, path+".2")
	assert.Contains(t, second, "record-3|")
	assert.Contains(t, second, "record-4|")

	// Oldest backup was pruned, not shifted past the retention cap.
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
	for _, f := range []string{active, first, second} {
		assert.NotContains(t, f, "record-1|")
		assert.NotContains(t, f, "record-2|")
	}

	stats := fs.GetStats()
	assert.Equal(t, uint64(7), stats.TotalWritten)
	assert.Equal(t, uint64(3), stats.Details["rotations"])
}

func TestFileSinkRotatesBeforeExceedingCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 100, MaxBackups: 3}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	line := rec(core.SeverityInfo, strings.Repeat("a", 59)+"\n")
	require.NoError(t, fs.Write(line))
	require.NoError(t, fs.Write(line))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(60), info.Size())

	backup, err := os.Stat(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), backup.Size())
	assert.LessOrEqual(t, info.Size(), int64(100))
}

func TestFileSinkOversizedRecordOnEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 50, MaxBackups: 1}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	big := rec(core.SeverityInfo, strings.Repeat("b", 79)+"\n")
	require.NoError(t, fs.Write(big))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(80), info.Size())

	// Next write rotates the oversized file out.
	require.NoError(t, fs.Write(rec(core.SeverityInfo, "tail\n")))
	assert.Equal(t, "tail\n", readFile(t, path))
	backup, err := os.Stat(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, int64(80), backup.Size())
}

func TestFileSinkTruncatesWithoutBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 50, MaxBackups: 0}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Write(rec(core.SeverityInfo, strings.Repeat("a", 44)+"\n")))
	require.NoError(t, fs.Write(rec(core.SeverityInfo, "after\n")))

	assert.Equal(t, "after\n", readFile(t, path))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestFileSinkCountsExistingBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("p", 30)), 0644))

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 100, MaxBackups: 1}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	assert.Equal(t, int64(30), fs.GetStats().Details["current_size"])

	require.NoError(t, fs.Write(rec(core.SeverityInfo, "0123456789")))
	assert.Equal(t, int64(40), fs.GetStats().Details["current_size"])
}

func TestFileSinkCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "app.log")

	fs, err := NewFileSink(FileConfig{Path: path, MaxSizeBytes: 100, MaxBackups: 1}, newTestLogger())
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Write(rec(core.SeverityInfo, "x\n")))
	assert.Equal(t, "x\n", readFile(t, path))
}

func TestFileSinkPathValidation(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := NewFileSink(FileConfig{Path: ""}, newTestLogger())
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := NewFileSink(FileConfig{Path: "../escape.log"}, newTestLogger())
		assert.Error(t, err)
	})
}

func TestFileSinkWriteAfterClose(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSink(FileConfig{Path: filepath.Join(dir, "app.log"), MaxSizeBytes: 100, MaxBackups: 1}, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, fs.Close())
	assert.ErrorIs(t, fs.Write(rec(core.SeverityInfo, "late\n")), ErrClosed)
	assert.NoError(t, fs.Close())
}
