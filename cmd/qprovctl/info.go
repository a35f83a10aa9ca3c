// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/fred-chen/qemu-provisioning/pkg/qemuimg"
)

func newInfoCommand() *cobra.Command {
	infoCommand := &cobra.Command{
		Use:           "info IMAGE",
		Short:         "Show information about a disk image",
		Example:       `  $ qprovctl info /data/disk.qcow2`,
		Args:          WrapArgsError(cobra.ExactArgs(1)),
		RunE:          infoAction,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	infoCommand.Flags().Bool("json", false, "print the raw qemu-img info output")
	return infoCommand
}

func infoAction(cmd *cobra.Command, args []string) error {
	info, err := qemuimg.GetInfo(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		b, err := json.MarshalIndent(info, "", "    ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "image: %s\n", info.Filename)
	fmt.Fprintf(w, "format: %s\n", info.Format)
	fmt.Fprintf(w, "virtual size: %s\n", units.BytesSize(float64(info.VSize)))
	fmt.Fprintf(w, "disk size: %s\n", units.BytesSize(float64(info.ActualSize)))
	if info.BackingFilename != "" {
		fmt.Fprintf(w, "backing file: %s\n", info.BackingFilename)
	}
	if info.FormatSpecific != nil {
		if qcow2 := info.FormatSpecific.Qcow2(); qcow2 != nil {
			fmt.Fprintf(w, "compat: %s\n", qcow2.Compat)
			fmt.Fprintf(w, "compression type: %s\n", qcow2.CompressionType)
		}
	}
	return nil
}
