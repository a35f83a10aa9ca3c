//go:build !windows

// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package lockutil

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned by WithFileLock when the exclusive lock cannot
// be acquired within the given bound.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

const pollInterval = 50 * time.Millisecond

// WithDirLock runs fn while holding an exclusive advisory lock on dir.
// The wait is unbounded.
func WithDirLock(dir string, fn func() error) error {
	dirFile, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer dirFile.Close()
	if err := Flock(dirFile, unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock %q: %w", dir, err)
	}
	defer func() {
		if err := Flock(dirFile, unix.LOCK_UN); err != nil {
			logrus.WithError(err).Errorf("failed to unlock %q", dir)
		}
	}()
	return fn()
}

// WithFileLock runs fn while holding an exclusive advisory lock on the file
// at path. Acquisition is bounded by timeout: the lock is polled with
// LOCK_EX|LOCK_NB so a holder that never releases cannot block the caller
// forever. Returns ErrLockTimeout when the bound is exceeded; fn is not run
// in that case.
func WithFileLock(path string, timeout time.Duration, fn func() error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	deadline := time.Now().Add(timeout)
	for {
		err := Flock(f, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if err != unix.EWOULDBLOCK {
			return fmt.Errorf("failed to lock %q: %w", path, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %q held by another process", ErrLockTimeout, path)
		}
		time.Sleep(pollInterval)
	}
	defer func() {
		if err := Flock(f, unix.LOCK_UN); err != nil {
			logrus.WithError(err).Errorf("failed to unlock %q", path)
		}
	}()
	return fn()
}

func Flock(f *os.File, flags int) error {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, flags)
		if err == nil || err != unix.EINTR {
			return err
		}
	}
}
