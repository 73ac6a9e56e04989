//go:build windows

package flock

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"syscall"
	"time"
	"unsafe"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procCreateEventW = modkernel32.NewProc("CreateEventW")
)

const (
	_LOCKFILE_FAIL_IMMEDIATELY = 1
	_LOCKFILE_EXCLUSIVE_LOCK   = 2
	ERROR_LOCK_VIOLATION       = 33
)

// Lock still allows the file handle to be opened by another process for
// competing locks on the same file.
func Lock(f *os.File) error {
	ol, err := newOverlapped()
	if err != nil {
		return err
	}
	defer func() {
		if err := syscall.CloseHandle(ol.HEvent); err != nil {
			log.Printf("[ERROR] failed to close file locking event handle: %v", err)
		}
	}()

	return lockFileEx(
		syscall.Handle(f.Fd()),
		_LOCKFILE_EXCLUSIVE_LOCK|_LOCKFILE_FAIL_IMMEDIATELY,
		0,
		0,
		math.MaxUint32,
		ol,
	)
}

// LockBlocking polls Lock until it succeeds or ctx is done. This is a
// stopgap until native blocking locks are used instead.
func LockBlocking(ctx context.Context, f *os.File) error {
	resultChan := make(chan error)

	go func() {
		for {
			err := Lock(f)
			if err == nil {
				resultChan <- nil
				return
			}

			select {
			case <-ctx.Done():
				resultChan <- ctx.Err()
				return
			default:
				var errno syscall.Errno
				if errors.As(err, &errno) && errno == ERROR_LOCK_VIOLATION {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				resultChan <- err
			}
		}
	}()

	return <-resultChan
}

// Unlock is a no-op on Windows; the lock is released when the file handle
// is closed.
func Unlock(*os.File) error {
	return nil
}

func lockFileEx(h syscall.Handle, flags, reserved, locklow, lockhigh uint32, ol *syscall.Overlapped) (err error) {
	r1, _, e1 := syscall.SyscallN(
		procLockFileEx.Addr(),
		uintptr(h),
		uintptr(flags),
		uintptr(reserved),
		uintptr(locklow),
		uintptr(lockhigh),
		uintptr(unsafe.Pointer(ol)),
	)
	if r1 == 0 {
		if e1 != 0 {
			err = error(e1)
		} else {
			err = syscall.EINVAL
		}
	}
	return
}

func newOverlapped() (*syscall.Overlapped, error) {
	event, err := createEvent(nil, true, false, nil)
	if err != nil {
		return nil, err
	}
	return &syscall.Overlapped{HEvent: event}, nil
}

func createEvent(sa *syscall.SecurityAttributes, manualReset bool, initialState bool, name *uint16) (handle syscall.Handle, err error) {
	var p0, p1 uint32
	if manualReset {
		p0 = 1
	}
	if initialState {
		p1 = 1
	}

	r0, _, e1 := syscall.SyscallN(
		procCreateEventW.Addr(),
		uintptr(unsafe.Pointer(sa)),
		uintptr(p0),
		uintptr(p1),
		uintptr(unsafe.Pointer(name)),
		0,
		0,
	)
	handle = syscall.Handle(r0)
	if handle == syscall.InvalidHandle {
		if e1 != 0 {
			err = error(e1)
		} else {
			err = syscall.EINVAL
		}
	}
	return
}
