// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package reclaim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"

	"github.com/fred-chen/qemu-provisioning/pkg/lockutil"
)

// copySparsifier copies src to dst with a recognizable prefix so tests can
// tell the collaborator's output from the original content.
type copySparsifier struct{}

func (*copySparsifier) Sparsify(_ context.Context, src, dst, _ string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("sparsified:"), data...), 0o644)
}

// failSparsifier writes a partial temp file and then fails, like an external
// binary dying mid-run.
type failSparsifier struct{}

func (*failSparsifier) Sparsify(_ context.Context, _, dst, _ string) error {
	if err := os.WriteFile(dst, []byte("partial"), 0o644); err != nil {
		return err
	}
	return errors.New("exit status 1")
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "disk.qcow2")
	assert.NilError(t, os.WriteFile(path, []byte("qcow2 payload"), 0o644))
	return path
}

func TestReclaim(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	image := writeImage(t, dir)

	err := Reclaim(context.Background(), image, scratch, WithSparsifier(&copySparsifier{}))
	assert.NilError(t, err)

	data, err := os.ReadFile(image)
	assert.NilError(t, err)
	assert.Equal(t, "sparsified:qcow2 payload", string(data))

	_, err = os.Stat(TempPath(image, scratch))
	assert.Assert(t, errors.Is(err, os.ErrNotExist), "temp file must not remain")
}

func TestReclaimMissingImage(t *testing.T) {
	scratch := t.TempDir()
	err := Reclaim(context.Background(), filepath.Join(t.TempDir(), "missing.qcow2"), scratch,
		WithSparsifier(&copySparsifier{}))
	assert.ErrorIs(t, err, ErrInvalidInput)

	entries, rerr := os.ReadDir(scratch)
	assert.NilError(t, rerr)
	assert.Equal(t, 0, len(entries), "no writes on precondition failure")
}

func TestReclaimImageNotRegular(t *testing.T) {
	err := Reclaim(context.Background(), t.TempDir(), t.TempDir(),
		WithSparsifier(&copySparsifier{}))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReclaimMissingScratchDir(t *testing.T) {
	image := writeImage(t, t.TempDir())
	err := Reclaim(context.Background(), image, filepath.Join(t.TempDir(), "missing"),
		WithSparsifier(&copySparsifier{}))
	assert.ErrorIs(t, err, ErrInvalidInput)

	data, rerr := os.ReadFile(image)
	assert.NilError(t, rerr)
	assert.Equal(t, "qcow2 payload", string(data))
}

func TestReclaimLockTimeout(t *testing.T) {
	image := writeImage(t, t.TempDir())
	scratch := t.TempDir()

	holder, err := os.Open(image)
	assert.NilError(t, err)
	defer holder.Close()
	assert.NilError(t, lockutil.Flock(holder, unix.LOCK_EX))
	defer lockutil.Flock(holder, unix.LOCK_UN)

	err = Reclaim(context.Background(), image, scratch,
		WithSparsifier(&copySparsifier{}), WithLockTimeout(200*time.Millisecond))
	assert.ErrorIs(t, err, ErrLockTimeout)

	data, rerr := os.ReadFile(image)
	assert.NilError(t, rerr)
	assert.Equal(t, "qcow2 payload", string(data), "image must be unchanged")
}

func TestReclaimSparsifyFailed(t *testing.T) {
	image := writeImage(t, t.TempDir())
	scratch := t.TempDir()

	err := Reclaim(context.Background(), image, scratch, WithSparsifier(&failSparsifier{}))
	assert.ErrorIs(t, err, ErrSparsifyFailed)

	data, rerr := os.ReadFile(image)
	assert.NilError(t, rerr)
	assert.Equal(t, "qcow2 payload", string(data), "image must be unchanged")

	_, serr := os.Stat(TempPath(image, scratch))
	assert.Assert(t, errors.Is(serr, os.ErrNotExist), "partial temp file must be removed")
}

func TestReclaimCommitFailed(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("must not run as the root user (directory permissions are not enforced)")
	}
	imageDir := t.TempDir()
	image := writeImage(t, imageDir)
	scratch := t.TempDir()

	// A read-only parent directory makes the final rename fail while the
	// sparsified temp file under scratch is still written fine.
	assert.NilError(t, os.Chmod(imageDir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(imageDir, 0o755) })

	err := Reclaim(context.Background(), image, scratch, WithSparsifier(&copySparsifier{}))
	assert.ErrorIs(t, err, ErrCommitFailed)

	data, rerr := os.ReadFile(image)
	assert.NilError(t, rerr)
	assert.Equal(t, "qcow2 payload", string(data), "image must be unchanged")
}

func TestReclaimDefaultScratchDir(t *testing.T) {
	image := writeImage(t, t.TempDir())
	err := Reclaim(context.Background(), image, "", WithSparsifier(&copySparsifier{}))
	assert.NilError(t, err)

	data, rerr := os.ReadFile(image)
	assert.NilError(t, rerr)
	assert.Equal(t, "sparsified:qcow2 payload", string(data))
}
