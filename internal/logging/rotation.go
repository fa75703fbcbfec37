package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// RotationConfig controls size-based rotation of bridge.log. It mirrors the
// logging section of the hostbridge config file.
type RotationConfig struct {
	// MaxSizeMB rotates bridge.log once a write would grow it past this
	// many megabytes. Zero never rotates.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept as bridge.log.1 (newest)
	// through bridge.log.N. Zero discards the old file on rotation.
	MaxBackups int
	// Compress stores rotated files as bridge.log.N.gz.
	Compress bool
}

// rotatingFile is the log sink used by NewLoggerWithRotation. Rotation
// happens inline under the write lock, so a line is never split across two
// files and backups are complete once Write returns.
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int
	compress bool

	f    *os.File
	size int64
}

func openRotatingFile(path string, cfg RotationConfig) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rf := &rotatingFile{
		path:     path,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		backups:  max(cfg.MaxBackups, 0),
		compress: cfg.Compress,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// open appends to path, picking up the size of whatever a previous host
// already wrote there.
func (rf *rotatingFile) open() error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.f = f
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return 0, fmt.Errorf("log file %s is closed", rf.path)
	}
	if rf.maxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			// Keep logging to whichever file is open
			fmt.Fprintf(os.Stderr, "hostbridge: log rotation failed: %v\n", err)
			if rf.f == nil {
				return 0, err
			}
		}
	}

	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate moves bridge.log to bridge.log.1 and starts a fresh file. The
// caller holds mu.
func (rf *rotatingFile) rotate() error {
	if err := rf.f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rf.f = nil

	if rf.backups == 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to discard log file: %w", err)
		}
		return rf.open()
	}

	rf.shiftBackups()
	first := rf.backup(1, false)
	if err := os.Rename(rf.path, first); err != nil {
		if openErr := rf.open(); openErr != nil {
			return fmt.Errorf("failed to rename log file and reopen: %w", openErr)
		}
		return fmt.Errorf("failed to rename log file: %w", err)
	}
	if rf.compress {
		if err := gzipFile(first); err != nil {
			fmt.Fprintf(os.Stderr, "hostbridge: keeping %s uncompressed: %v\n", first, err)
		}
	}
	return rf.open()
}

// shiftBackups renames bridge.log.i to bridge.log.i+1 from the oldest down,
// dropping the one that would exceed the backup count. A backup may exist
// compressed or not, depending on the config it was written under.
func (rf *rotatingFile) shiftBackups() {
	for _, gz := range []bool{false, true} {
		os.Remove(rf.backup(rf.backups, gz))
	}
	for i := rf.backups - 1; i >= 1; i-- {
		for _, gz := range []bool{false, true} {
			if _, err := os.Stat(rf.backup(i, gz)); err == nil {
				os.Rename(rf.backup(i, gz), rf.backup(i+1, gz))
			}
		}
	}
}

func (rf *rotatingFile) backup(n int, gz bool) string {
	p := fmt.Sprintf("%s.%d", rf.path, n)
	if gz {
		p += ".gz"
	}
	return p
}

// Close syncs and closes the current file. It is idempotent.
func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return nil
	}
	f := rf.f
	rf.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return f.Close()
}

// gzipFile replaces path with path.gz. The original is removed only once the
// compressed copy is complete.
func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	_, err = io.Copy(zw, src)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}
