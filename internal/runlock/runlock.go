// Package runlock serializes writers to one target environment across
// processes with an advisory file lock.
package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	"github.com/steveyegge/ferry/internal/debug"
)

const (
	// DefaultTimeout is the wait used when no lock.timeout is configured.
	DefaultTimeout = 30 * time.Second

	pollInterval = 50 * time.Millisecond
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Lock is an exclusive lock on one environment.
type Lock struct {
	flock       *flock.Flock
	environment string
}

// Dir returns the directory lock files live in: $XDG_CACHE_HOME/ferry or
// ~/.cache/ferry.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ferry"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating lock directory: %w", err)
	}
	return filepath.Join(home, ".cache", "ferry"), nil
}

// Path returns the lock file for environment inside dir.
func Path(dir, environment string) string {
	name := unsafeChars.ReplaceAllString(environment, "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(dir, name+".lock")
}

// New returns an unacquired lock for environment under dir.
func New(dir, environment string) *Lock {
	return &Lock{flock: flock.New(Path(dir, environment)), environment: environment}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// TryAcquire takes the lock without waiting.
func (l *Lock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return false, fmt.Errorf("creating lock directory: %w", err)
	}
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock environment %s: %w", l.environment, err)
	}
	if locked {
		debug.Logf("acquired run lock: %s\n", l.flock.Path())
	}
	return locked, nil
}

// Acquire polls for the lock until timeout or ctx ends. A zero timeout tries once.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	locked, err := l.TryAcquire()
	if err != nil || locked {
		return err
	}
	if timeout <= 0 {
		return l.busy(0)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return l.busy(time.Since(start))
		case <-ticker.C:
		}
		locked, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if locked {
			debug.Logf("waited %v for run lock\n", time.Since(start).Round(time.Millisecond))
			return nil
		}
	}
}

func (l *Lock) busy(waited time.Duration) error {
	return fmt.Errorf("environment %s is locked by another ferry run (waited %v, lock file %s)",
		l.environment, waited.Round(time.Millisecond), l.flock.Path())
}

// Release unlocks. Safe to call more than once.
func (l *Lock) Release() error {
	if l.flock == nil || !l.flock.Locked() {
		return nil
	}
	debug.Logf("releasing run lock: %s\n", l.flock.Path())
	return l.flock.Unlock()
}

// With runs fn while holding the lock for environment under the default Dir.
func With(ctx context.Context, environment string, timeout time.Duration, fn func() error) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	lock := New(dir, environment)
	if err := lock.Acquire(ctx, timeout); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}
