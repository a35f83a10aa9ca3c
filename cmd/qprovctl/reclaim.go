// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fred-chen/qemu-provisioning/pkg/reclaim"
)

func newReclaimCommand() *cobra.Command {
	reclaimCommand := &cobra.Command{
		Use:   "reclaim [-t SCRATCHDIR] IMAGE",
		Short: "Reclaim unused space in a qcow2 image",
		Long: `Reclaim unused space in a qcow2 image.

The image is locked, sparsified with virt-sparsify into a temporary file
under the scratch directory, and atomically replaced on success. The
operation fails immediately if another process holds the lock.`,
		Example: `  $ qprovctl reclaim /data/disk.qcow2
  $ qprovctl reclaim -t /var/tmp /data/disk.qcow2`,
		Args:          WrapArgsError(cobra.ExactArgs(1)),
		RunE:          reclaimAction,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	reclaimCommand.Flags().StringP("tmpdir", "t", "", "scratch directory for the sparsified copy (default: system temp dir)")
	return reclaimCommand
}

func reclaimAction(cmd *cobra.Command, args []string) error {
	scratchDir, err := cmd.Flags().GetString("tmpdir")
	if err != nil {
		return err
	}
	imagePath := args[0]

	if err := reclaim.Reclaim(cmd.Context(), imagePath, scratchDir); err != nil {
		return err
	}
	logrus.Infof("Reclaimed space in %q", imagePath)
	return nil
}
