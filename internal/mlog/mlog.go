// Package mlog implements the mission log: an append-only plain-text audit
// log with size-triggered rotation and bounded backup retention. Every
// component writes structured entries through it, one per line, in the form
//
//	[2006-01-02 15:04:05] [CATEGORY] message
//
// Rotation renames the active file to a timestamped backup and starts a
// fresh file; after rotation at most KeepBackups backups remain, oldest (by
// modification time) deleted first.
package mlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onwardseo/missiond/pkg/logger"
)

const (
	// FileName is the active mission log file name inside the log directory.
	FileName = "mission.log"

	// DefaultMaxSize is the rotation threshold for the active file.
	DefaultMaxSize = 5 * 1024 * 1024

	// DefaultKeepBackups is how many rotated backups are retained.
	DefaultKeepBackups = 5

	timestampLayout = "2006-01-02 15:04:05"
	backupLayout    = "20060102-150405"
)

// Common entry categories. Free-form categories are allowed; these are the
// ones the mission controller itself emits.
const (
	CatScheduled   = "SCHEDULED"
	CatExecute     = "EXECUTE"
	CatSuccess     = "SUCCESS"
	CatComplete    = "COMPLETE"
	CatSkip        = "SKIP"
	CatAbort       = "ABORT"
	CatRetry       = "RETRY"
	CatCritical    = "CRITICAL"
	CatError       = "ERROR"
	CatWarn        = "WARN"
	CatInfo        = "INFO"
	CatHealth      = "HEALTH"
	CatMaintenance = "MAINTENANCE"
	CatDiagnostics = "DIAGNOSTICS"
)

// Log is the mission log. All methods are safe for concurrent use; writes
// are synchronous so an entry is on disk before the caller proceeds.
type Log struct {
	mu      sync.Mutex
	dir     string
	path    string
	f       *os.File
	maxSize int64
	keep    int
	now     func() time.Time
	echo    logger.Logger
}

// Options configures a Log. Zero values fall back to the defaults.
type Options struct {
	MaxSize     int64
	KeepBackups int
}

// Open opens (creating if needed) the mission log in dir.
func Open(dir string, opts Options) (*Log, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	l := &Log{
		dir:     dir,
		path:    filepath.Join(dir, FileName),
		maxSize: opts.MaxSize,
		keep:    opts.KeepBackups,
		now:     time.Now,
	}
	if l.maxSize <= 0 {
		l.maxSize = DefaultMaxSize
	}
	if l.keep <= 0 {
		l.keep = DefaultKeepBackups
	}
	if err := l.openFileLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openFileLocked() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open mission log: %w", err)
	}
	l.f = f
	return nil
}

// SetEcho mirrors every entry to the given logger (typically the daemon
// console). ERROR and CRITICAL entries echo as errors, WARN and ABORT as
// warnings, everything else as info.
func (l *Log) SetEcho(echo logger.Logger) {
	l.mu.Lock()
	l.echo = echo
	l.mu.Unlock()
}

// Path returns the active log file path.
func (l *Log) Path() string {
	return l.path
}

// Write appends one entry. Newlines inside message are flattened so the
// one-entry-per-line invariant holds.
func (l *Log) Write(category, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	message = strings.ReplaceAll(message, "\n", " ")
	entry := fmt.Sprintf("[%s] [%s] %s\n", l.now().Format(timestampLayout), category, message)
	_, err := l.f.WriteString(entry)
	if l.echo != nil {
		switch category {
		case CatError, CatCritical:
			l.echo.Error("[%s] %s", category, message)
		case CatWarn, CatAbort:
			l.echo.Warning("[%s] %s", category, message)
		default:
			l.echo.Info("[%s] %s", category, message)
		}
	}
	return err
}

// Writef appends one formatted entry.
func (l *Log) Writef(category, format string, args ...interface{}) error {
	return l.Write(category, fmt.Sprintf(format, args...))
}

// RotateIfNeeded rotates the active file when it exceeds the size threshold
// and prunes old backups down to the retention limit. Returns whether a
// rotation happened. Called by the health monitor as a side duty.
func (l *Log) RotateIfNeeded() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return false, os.ErrClosed
	}

	fi, err := l.f.Stat()
	if err != nil {
		return false, err
	}
	if fi.Size() <= l.maxSize {
		return false, nil
	}

	backup := l.path + "." + l.now().Format(backupLayout)
	if err := l.f.Close(); err != nil {
		l.f = nil
		return false, err
	}
	if err := os.Rename(l.path, backup); err != nil {
		// Reopen the original so logging keeps working.
		_ = l.openFileLocked()
		return false, fmt.Errorf("rotate mission log: %w", err)
	}
	if err := l.openFileLocked(); err != nil {
		return true, err
	}
	_ = os.Chmod(backup, 0o640)

	entry := fmt.Sprintf("[%s] [%s] Log rotated to: %s\n",
		l.now().Format(timestampLayout), CatMaintenance, filepath.Base(backup))
	_, _ = l.f.WriteString(entry)

	if err := l.pruneBackupsLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// pruneBackupsLocked deletes the oldest backups (by mtime) until at most
// l.keep remain.
func (l *Log) pruneBackupsLocked() error {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return err
	}
	if len(matches) <= l.keep {
		return nil
	}
	type backup struct {
		path  string
		mtime time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: m, mtime: fi.ModTime()})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].mtime.Before(backups[j].mtime)
	})
	for _, b := range backups[:len(backups)-l.keep] {
		if err := os.Remove(b.path); err != nil {
			return err
		}
	}
	return nil
}

// Tail returns up to n trailing lines of the active log file.
func (l *Log) Tail(n int) ([]string, error) {
	l.mu.Lock()
	path := l.path
	l.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, sc.Err()
}

// Close closes the active file. Writes after Close fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
