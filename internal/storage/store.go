// Package storage implements the guarded durable store.
//
// A write goes to a sidecar file (<path>~) first and is renamed over the
// target only when the new payload is not suspiciously smaller than what is
// already there. Reads accept both the human-editable text format and the
// binary format, and fall back to a default value instead of failing.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/glossa/internal/checksum"
)

const (
	// BackupSuffix names the sidecar file a write lands in first.
	BackupSuffix = "~"

	writeAttempts = 3

	// A guarded write refusing to shrink a file below this ratio of its old
	// size. Heuristic, kept as is for compatibility.
	shrinkLimit = 0.5

	backupLayout = "2006-01-02-15"
)

var errEmpty = errors.New("empty file")

// Result is the outcome of a Write.
type Result int

const (
	// Failed means nothing new reached the disk.
	Failed Result = iota
	// Committed means the target file now holds the value.
	Committed
	// BackupOnly means the size guard tripped: the value is safe in the
	// sidecar file but the target is stale.
	BackupOnly
)

// OK reports whether the value reached the disk in some form.
func (r Result) OK() bool {
	return r == Committed || r == BackupOnly
}

func (r Result) String() string {
	switch r {
	case Committed:
		return "committed"
	case BackupOnly:
		return "backup-only"
	default:
		return "failed"
	}
}

// Store reads and writes whole values to named files.
type Store struct {
	text      Codec
	binary    Codec
	backupDir string
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*pathLock

	writeFile func(name string, data []byte) error
}

// Option configures a Store.
type Option func(*Store)

// WithBackupDir sets the directory point-in-time snapshots go to.
func WithBackupDir(dir string) Option {
	return func(s *Store) { s.backupDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		text:      YAML{},
		binary:    MsgPack{},
		backupDir: "backup",
		logger:    slog.Default(),
		locks:     make(map[string]*pathLock),
		writeFile: syncWrite,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read loads the value stored at path. A missing, unreadable or undecodable
// file is not an error: deflt is written in its place and returned.
func Read[T any](s *Store, path string, deflt T) T {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Info("store: setting default value after read failure",
			slog.String("path", path), slog.String("error", err.Error()))
		s.Write(path, deflt, false)
		return deflt
	}
	v, codec, err := decode[T](s, data)
	if err != nil {
		s.logger.Warn("store: undecodable file, setting default value",
			slog.String("path", path), slog.String("error", err.Error()))
		s.Write(path, deflt, false)
		return deflt
	}
	s.logger.Info("store: read",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.String("format", codec))
	return v
}

func decode[T any](s *Store, data []byte) (T, string, error) {
	var zero T
	if len(bytes.TrimSpace(data)) == 0 {
		return zero, "", errEmpty
	}
	var v T
	textErr := s.text.Unmarshal(data, &v)
	if textErr == nil {
		return v, s.text.Name(), nil
	}
	var b T
	if err := s.binary.Unmarshal(data, &b); err != nil {
		return zero, "", fmt.Errorf("storage: %s: %v; %s: %w", s.text.Name(), textErr, s.binary.Name(), err)
	}
	return b, s.binary.Name(), nil
}

// Write stores v at path unless override is false and the encoded value is
// less than half the size of the current file; in that case only the
// sidecar file is written and BackupOnly is returned. Writes to the same
// path are serialized.
func (s *Store) Write(path string, v any, override bool) Result {
	unlock := s.lock(path)
	defer unlock()

	res, err := s.write(path, v, override)
	if err != nil {
		s.logger.Error("store: write failed", slog.String("path", path), slog.String("error", err.Error()))
		return Failed
	}
	return res
}

func (s *Store) write(path string, v any, override bool) (Result, error) {
	data, err := s.binary.Marshal(v)
	if err != nil {
		return Failed, fmt.Errorf("storage: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Failed, fmt.Errorf("storage: mkdir: %w", err)
	}

	replace := true
	if !override {
		old, err := fileSize(path)
		if err != nil {
			return Failed, err
		}
		if shrinks(int64(len(data)), old) {
			s.logger.Warn("store: refusing to destructively overwrite, writing backup only",
				slog.String("path", path),
				slog.Int("bytes", len(data)),
				slog.Int64("old_bytes", old))
			replace = false
		}
	}

	sidecar := path + BackupSuffix
	if err := s.writeSidecar(sidecar, data); err != nil {
		return Failed, err
	}
	if !replace {
		s.logger.Info("store: wrote", slog.String("path", sidecar),
			slog.Int("bytes", len(data)), slog.String("sha256", checksum.Short(data)))
		return BackupOnly, nil
	}
	if err := os.Rename(sidecar, path); err != nil {
		return Failed, fmt.Errorf("storage: rename: %w", err)
	}
	s.logger.Info("store: wrote", slog.String("path", path),
		slog.Int("bytes", len(data)), slog.String("sha256", checksum.Short(data)))
	return Committed, nil
}

func (s *Store) writeSidecar(name string, data []byte) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = s.writeFile(name, data); err == nil {
			return nil
		}
		s.logger.Warn("store: sidecar write failed",
			slog.String("path", name),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("storage: giving up on %s after %d attempts: %w", name, writeAttempts, err)
}

// Backup writes an unguarded snapshot of v to a file named after the
// current hour under the backup directory, and returns its path.
func (s *Store) Backup(now time.Time, v any) (string, Result) {
	path := filepath.Join(s.backupDir, now.UTC().Format(backupLayout))
	return path, s.Write(path, v, true)
}

// pathLock serializes writers of one path. refs counts holders and
// waiters; the entry leaves Store.locks when it drops to zero.
type pathLock struct {
	sync.Mutex
	refs int
}

func (s *Store) lock(path string) func() {
	key := filepath.Clean(path)
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &pathLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	if !l.TryLock() {
		s.logger.Warn("store: file is already being written to", slog.String("path", path))
		l.Lock()
	}
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: stat: %w", err)
	}
	return info.Size(), nil
}

func shrinks(size, old int64) bool {
	return float64(size)/float64(max(old, 1)) < shrinkLimit
}

// syncWrite writes data to name and fsyncs it before closing.
func syncWrite(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
