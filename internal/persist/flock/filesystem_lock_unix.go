//go:build !windows

// Package flock provides advisory whole-file locking used to serialize
// access to a build directory's persisted graph (spec.md §7 "the build
// directory itself is locked for the duration of a build() call").
package flock

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
)

// Lock uses fcntl POSIX locks for the most consistent behavior across
// platforms, and some compatibility over NFS and CIFS.
func Lock(f *os.File) error {
	flock := &syscall.Flock_t{
		Type:   syscall.F_RDLCK | syscall.F_WRLCK,
		Whence: int16(io.SeekStart),
		Start:  0,
		Len:    0,
	}

	return syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, flock)
}

// LockBlocking is like Lock except that if the lock is currently contended
// then it blocks until it becomes available.
//
// If the given context is cancelled then it returns early with the
// cancellation error.
func LockBlocking(ctx context.Context, f *os.File) error {
	flock := &syscall.Flock_t{
		Type:   syscall.F_RDLCK | syscall.F_WRLCK,
		Whence: int16(io.SeekStart),
		Start:  0,
		Len:    0,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := make(chan error)
	go func() {
		for {
			err := syscall.FcntlFlock(f.Fd(), syscall.F_SETLKW, flock)
			if err == syscall.EINTR {
				// We'll get here if our process gets any signal at all, but
				// not all signals represent cancellation.
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else {
					continue
				}
			}
			c <- err
			close(c)
			return
		}
	}()

	for {
		select {
		case err := <-c:
			return err
		case <-ctx.Done():
			// We'll get here if the cancellation is caused by anything other
			// than a Unix signal, in which case we signal ourselves to force
			// the waiting goroutine to exit. SIGUSR1 is used on the
			// assumption that nothing else in this process uses it; the
			// signal is sent to our own pid specifically, since the process
			// group may contain other children.
			err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
			if err != nil {
				return fmt.Errorf("failed canceling lock acquisition: %w", err)
			}
		}
	}
}

// Unlock releases a lock acquired by Lock or LockBlocking.
func Unlock(f *os.File) error {
	flock := &syscall.Flock_t{
		Type:   syscall.F_UNLCK,
		Whence: int16(io.SeekStart),
		Start:  0,
		Len:    0,
	}

	return syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, flock)
}
