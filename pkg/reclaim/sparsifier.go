// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package reclaim

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Sparsifier produces a space-reclaimed copy of the image at src at dst,
// leaving src unmodified. scratchDir may be used for intermediate files.
type Sparsifier interface {
	Sparsify(ctx context.Context, src, dst, scratchDir string) error
}

// virtSparsifier delegates to the virt-sparsify binary from libguestfs.
type virtSparsifier struct{}

func (*virtSparsifier) Sparsify(ctx context.Context, src, dst, scratchDir string) error {
	cmd := exec.CommandContext(ctx, "virt-sparsify", "--tmp", scratchDir, src, dst)
	logrus.Debugf("Executing %v", cmd.Args)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to run %v: %q: %w", cmd.Args, string(out), err)
	}
	return nil
}
