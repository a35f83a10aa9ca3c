// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fred-chen/qemu-provisioning/pkg/clusteryaml"
)

func newValidateCommand() *cobra.Command {
	validateCommand := &cobra.Command{
		Use:           "validate -f FILE",
		Short:         "Validate a cluster definition file",
		Example:       `  $ qprovctl validate -f cluster.yaml`,
		Args:          WrapArgsError(cobra.NoArgs),
		RunE:          validateAction,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	validateCommand.Flags().StringP("configfile", "f", "", "cluster definition file")
	_ = validateCommand.MarkFlagRequired("configfile")
	return validateCommand
}

func validateAction(cmd *cobra.Command, _ []string) error {
	configFile, err := cmd.Flags().GetString("configfile")
	if err != nil {
		return err
	}
	y, err := clusteryaml.LoadFile(configFile)
	if err != nil {
		return err
	}
	if err := clusteryaml.Validate(y); err != nil {
		return err
	}
	logrus.Infof("%q: OK (%d nodes)", configFile, len(y.Nodes))
	return nil
}
