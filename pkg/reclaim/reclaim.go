// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

// Package reclaim shrinks qcow2 disk images in place.
//
// The image is locked with an exclusive advisory lock, sparsified into a
// temporary file under a scratch directory, and the original is replaced by
// a single atomic rename. A concurrent writer mutating the image while it is
// being sparsified would corrupt it, so the lock wait is bounded and every
// failure is terminal for the invocation.
package reclaim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fred-chen/qemu-provisioning/pkg/lockutil"
)

var (
	// ErrInvalidInput indicates a missing image file or scratch directory.
	// Nothing has been written when this is returned.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLockTimeout indicates the exclusive lock on the image was not
	// acquired within the bound. Nothing has been written.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrSparsifyFailed indicates the sparsify collaborator failed. The
	// original image is untouched and the temporary output has been removed.
	ErrSparsifyFailed = errors.New("sparsify failed")
	// ErrCommitFailed indicates the final rename failed after a successful
	// sparsify. The image is left in whatever state the rename left it.
	ErrCommitFailed = errors.New("commit failed")
)

// DefaultLockTimeout bounds the wait for the exclusive image lock.
const DefaultLockTimeout = 1 * time.Second

type options struct {
	sparsifier  Sparsifier
	lockTimeout time.Duration
}

type Opt func(*options) error

// WithSparsifier overrides the sparsify collaborator (default: virt-sparsify).
func WithSparsifier(s Sparsifier) Opt {
	return func(o *options) error {
		o.sparsifier = s
		return nil
	}
}

// WithLockTimeout overrides the bound on the lock wait.
func WithLockTimeout(d time.Duration) Opt {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("lock timeout must be positive")
		}
		o.lockTimeout = d
		return nil
	}
}

// TempPath returns the temporary output path used for imagePath under
// scratchDir.
func TempPath(imagePath, scratchDir string) string {
	return filepath.Join(scratchDir, "temp."+filepath.Base(imagePath))
}

// Reclaim sparsifies the qcow2 image at imagePath, staging the output in
// scratchDir and atomically replacing the original on success. An empty
// scratchDir means os.TempDir(). The whole operation runs under an exclusive
// advisory lock on the image; no retry is attempted on any failure.
func Reclaim(ctx context.Context, imagePath, scratchDir string, opts ...Opt) error {
	o := options{
		sparsifier:  &virtSparsifier{},
		lockTimeout: DefaultLockTimeout,
	}
	for _, f := range opts {
		if err := f(&o); err != nil {
			return err
		}
	}

	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	st, err := os.Stat(imagePath)
	if err != nil || !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrInvalidInput, imagePath)
	}
	st, err = os.Stat(scratchDir)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("%w: %q is not a directory", ErrInvalidInput, scratchDir)
	}

	tempPath := TempPath(imagePath, scratchDir)
	err = lockutil.WithFileLock(imagePath, o.lockTimeout, func() error {
		logrus.Debugf("sparsifying %q into %q", imagePath, tempPath)
		if err := o.sparsifier.Sparsify(ctx, imagePath, tempPath, scratchDir); err != nil {
			if rerr := os.Remove(tempPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				logrus.WithError(rerr).Warnf("failed to remove %q", tempPath)
			}
			return fmt.Errorf("%w: %w", ErrSparsifyFailed, err)
		}
		if err := os.Rename(tempPath, imagePath); err != nil {
			return fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
		return nil
	})
	if errors.Is(err, lockutil.ErrLockTimeout) {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	return err
}
