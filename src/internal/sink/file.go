// FILE: logveil/src/internal/sink/file.go
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// FileConfig configures a size-rotating file sink.
type FileConfig struct {
	// Path of the active log file.
	Path string
	// MaxSizeBytes caps the active file. A write that would push past
	// the cap rotates first.
	MaxSizeBytes int64
	// MaxBackups is how many numbered backup files to retain. Zero
	// keeps none: rotation truncates the active file in place.
	MaxBackups int
}

// FileSink writes records to a file, rotating it through numbered
// backups before the size cap would be exceeded. The newest backup is
// path.1, the oldest path.<MaxBackups>.
type FileSink struct {
	cfg    FileConfig
	mu     sync.Mutex
	file   *os.File
	size   int64
	logger *log.Logger

	// Statistics
	startTime    time.Time
	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64
	rotations    atomic.Uint64
	lastWrite    atomic.Value // time.Time
}

// NewFileSink validates the path, creates missing directories, and
// opens the active file in append mode. A pre-existing file's length
// counts against the size cap.
func NewFileSink(cfg FileConfig, logger *log.Logger) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file sink path cannot be empty")
	}
	clean := filepath.Clean(cfg.Path)
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return nil, fmt.Errorf("path traversal rejected: %q", cfg.Path)
		}
	}
	cfg.Path = clean

	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = core.DefaultMaxFileSizeMB * 1024 * 1024
	}
	if cfg.MaxBackups < 0 {
		cfg.MaxBackups = 0
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	fs := &FileSink{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
	fs.lastWrite.Store(time.Time{})

	if err := fs.open(); err != nil {
		return nil, err
	}

	logger.Info("msg", "File sink started",
		"component", "file_sink",
		"path", cfg.Path,
		"max_size_bytes", cfg.MaxSizeBytes,
		"max_backups", cfg.MaxBackups)
	return fs, nil
}

// open prepares the active file and seeds the tracked size from disk.
// MUST be called with mutex held (or before the sink is shared).
func (fs *FileSink) open() error {
	f, err := os.OpenFile(fs.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", fs.cfg.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat %q: %w", fs.cfg.Path, err)
	}
	fs.file = f
	fs.size = info.Size()
	return nil
}

// Write implements Sink. Rotation happens strictly before a write that
// would push the active file past the cap. A record larger than the
// cap itself goes whole into a fresh file rather than being split.
func (fs *FileSink) Write(rec core.Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		fs.totalFailed.Add(1)
		return ErrClosed
	}

	if fs.size > 0 && fs.size+int64(len(rec.Data)) > fs.cfg.MaxSizeBytes {
		if err := fs.rotate(); err != nil {
			fs.totalFailed.Add(1)
			return err
		}
	}

	n, err := fs.file.Write(rec.Data)
	fs.size += int64(n)
	if err != nil {
		fs.totalFailed.Add(1)
		return fmt.Errorf("file write: %w", err)
	}

	fs.totalWritten.Add(1)
	fs.lastWrite.Store(time.Now())
	return nil
}

// rotate shifts numbered backups upward, moves the active file to .1,
// and opens a fresh one. MUST be called with mutex held.
func (fs *FileSink) rotate() error {
	if err := fs.file.Close(); err != nil {
		fs.logger.Warn("msg", "Error closing file before rotation",
			"component", "file_sink",
			"error", err)
	}
	fs.file = nil

	if fs.cfg.MaxBackups == 0 {
		if err := os.Truncate(fs.cfg.Path, 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncate during rotation: %w", err)
		}
	} else {
		// The oldest backup falls off the end.
		oldest := fs.backupPath(fs.cfg.MaxBackups)
		if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("msg", "Failed to remove oldest backup",
				"component", "file_sink",
				"path", oldest,
				"error", err)
		}
		for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
			from := fs.backupPath(i)
			to := fs.backupPath(i + 1)
			if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
				fs.logger.Warn("msg", "Failed to shift backup",
					"component", "file_sink",
					"from", from,
					"to", to,
					"error", err)
			}
		}
		if err := os.Rename(fs.cfg.Path, fs.backupPath(1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotation rename: %w", err)
		}
	}

	fs.rotations.Add(1)
	return fs.open()
}

func (fs *FileSink) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", fs.cfg.Path, n)
}

// Close syncs and closes the active file. Further writes fail with
// ErrClosed.
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return nil
	}
	if err := fs.file.Sync(); err != nil {
		fs.logger.Warn("msg", "Failed to sync file on close",
			"component", "file_sink",
			"error", err)
	}
	err := fs.file.Close()
	fs.file = nil
	if err != nil {
		return fmt.Errorf("file close: %w", err)
	}
	return nil
}

func (fs *FileSink) GetStats() Stats {
	lastWrite, _ := fs.lastWrite.Load().(time.Time)

	fs.mu.Lock()
	currentSize := fs.size
	fs.mu.Unlock()

	return Stats{
		Type:         "file",
		TotalWritten: fs.totalWritten.Load(),
		TotalFailed:  fs.totalFailed.Load(),
		StartTime:    fs.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"path":           fs.cfg.Path,
			"current_size":   currentSize,
			"max_size_bytes": fs.cfg.MaxSizeBytes,
			"max_backups":    fs.cfg.MaxBackups,
			"rotations":      fs.rotations.Load(),
		},
	}
}
