package flock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockBasicFunctionality(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "test.lock")

	f, err := os.Create(lockFile)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer f.Close()

	if err := Lock(f); err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if err := Unlock(f); err != nil {
		t.Fatalf("failed to unlock: %v", err)
	}
}

func TestLockBlockingEventualSuccess(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "eventual.lock")

	f1, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer f1.Close()

	f2, err := os.OpenFile(lockFile, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("failed to open test file with a second handle: %v", err)
	}
	defer f2.Close()

	if err := Lock(f1); err != nil {
		t.Fatalf("failed to acquire first lock: %v", err)
	}

	var wg sync.WaitGroup
	var lockErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		lockErr = LockBlocking(context.Background(), f2)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := Unlock(f1); err != nil {
		t.Fatalf("failed to unlock first handle: %v", err)
	}
	wg.Wait()

	if lockErr != nil {
		t.Fatalf("blocking lock should have succeeded: %v", lockErr)
	}
	if err := Unlock(f2); err != nil {
		t.Fatalf("failed to unlock second handle: %v", err)
	}
}

func TestLockBlockingUncontendedWithDeadline(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "cancel.lock")

	f, err := os.Create(lockFile)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Locking an uncontended file should succeed immediately regardless of
	// the short timeout; this just exercises the happy path of the
	// context-aware call.
	if err := LockBlocking(ctx, f); err != nil {
		t.Fatalf("expected uncontended lock to succeed: %v", err)
	}
	_ = Unlock(f)
}
