// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/fred-chen/qemu-provisioning/pkg/clusteryaml"
	"github.com/fred-chen/qemu-provisioning/pkg/deploy"
)

func newDeployCommand() *cobra.Command {
	deployCommand := &cobra.Command{
		Use:   "deploy -f FILE",
		Short: "Deploy a QEMU VM cluster from a definition file",
		Example: `  $ qprovctl deploy -f cluster.yaml
  $ qprovctl deploy -f cluster.yaml --dir /clusters --cache-dir /var/cache/images`,
		Args:          WrapArgsError(cobra.NoArgs),
		RunE:          deployAction,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	deployCommand.Flags().StringP("configfile", "f", "", "cluster definition file")
	_ = deployCommand.MarkFlagRequired("configfile")
	deployCommand.Flags().String("dir", ".", "directory the cluster directory is created under")
	deployCommand.Flags().String("cache-dir", "", "cache directory for downloaded base images")
	return deployCommand
}

func deployAction(cmd *cobra.Command, _ []string) error {
	configFile, err := cmd.Flags().GetString("configfile")
	if err != nil {
		return err
	}
	baseDir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}

	y, err := clusteryaml.LoadFile(configFile)
	if err != nil {
		return err
	}

	d := deploy.New()
	d.CacheDir = cacheDir
	return d.Deploy(cmd.Context(), y, baseDir)
}
