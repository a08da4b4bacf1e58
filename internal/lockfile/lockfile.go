// Package lockfile guards a Jinny state directory against a second process.
//
// The lock is an flock on a file inside the directory, so the kernel drops it when the
// holder exits, cleanly or not. SQLite databases in the directory must only be opened
// while the lock is held.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is created inside the state directory.
const LockFileName = "jinny.lock"

// ErrAlreadyLocked is matched by errors.Is when another process holds the lock.
var ErrAlreadyLocked = errors.New("state directory is locked by another process")

// Owner is what the holder writes into the lock file.
type Owner struct {
	PID     int
	Started time.Time
}

// Lock is a held state-directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock on stateDir, creating the directory if needed. It never blocks:
// a held lock yields a *LockError.
func Acquire(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, LockFileName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC would wipe the holder's owner info before we know the lock is free
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{Path: path, Cause: err}
		if owner, ok := ReadOwner(path); ok {
			lockErr.Owner = &owner
			lockErr.OwnerRunning = processAlive(owner.PID)
		}
		slog.Error("lockfile.Acquire: state directory already locked", "lock_path", path, "error", err)
		return nil, lockErr
	}

	owner := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := writeOwner(file, owner); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to record lock owner in %s: %w", path, err)
	}

	slog.Info("lockfile.Acquire: state directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

func writeOwner(f *os.File, owner string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(owner), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("lockfile.writeOwner: sync failed", "error", err, "lock_path", f.Name())
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock and removes the file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	var errs []error
	// remove while still holding the flock so a waiting process never sees our stale owner
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, err)
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, err)
	}
	l.file = nil
	if err := errors.Join(errs...); err != nil {
		slog.Error("lockfile.Release: release incomplete", "lock_path", l.path, "error", err)
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	slog.Info("lockfile.Release: state directory unlocked", "lock_path", l.path)
	return nil
}

// LockError reports a lock held by someone else.
type LockError struct {
	Path         string
	Owner        *Owner // nil when the lock file could not be parsed
	OwnerRunning bool
	Cause        error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another Jinny instance is using this state directory (lock file %s)", e.Path)
	if e.Owner != nil {
		state := "running"
		if !e.OwnerRunning {
			state = "not running, lock may be stale"
		}
		fmt.Fprintf(&b, "; held by pid %d (%s)", e.Owner.PID, state)
	}
	fmt.Fprintf(&b, "; remove %s only if no other instance is running", e.Path)
	return b.String()
}

func (e *LockError) Unwrap() []error {
	return []error{ErrAlreadyLocked, e.Cause}
}

// ReadOwner parses the owner recorded in a lock file. ok is false when there is no pid.
func ReadOwner(path string) (owner Owner, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return Owner{}, false
	}
	defer f.Close()
	return parseOwner(bufio.NewScanner(f))
}

func parseOwner(sc *bufio.Scanner) (owner Owner, ok bool) {
	for sc.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !found {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				owner.PID = pid
				ok = true
			}
		case "started":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				owner.Started = t
			}
		}
	}
	return owner, ok
}

// processAlive sends signal 0, which checks existence without delivering anything.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
