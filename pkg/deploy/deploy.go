// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploy materializes a cluster definition on disk:
//
//	<baseDir>/<clusterName>
//	  |- start_cluster.sh
//	  |- stop_cluster.sh
//	  |- base/<image>            (downloaded base image, shared by the nodes)
//	  |- <node>
//	  |    |- system.qcow2       (backed by the base image)
//	  |    |- dataN.qcow2
//	  |    |- start.sh
//	  |    |- cloud-init
//	  |         |- meta-data
//	  |         |- user-data
//	  |         |- network-config
//	  |         |- cloud-init-provisioning.iso
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/fred-chen/qemu-provisioning/pkg/cidata"
	"github.com/fred-chen/qemu-provisioning/pkg/clusteryaml"
	"github.com/fred-chen/qemu-provisioning/pkg/downloader"
	"github.com/fred-chen/qemu-provisioning/pkg/freeport"
	"github.com/fred-chen/qemu-provisioning/pkg/localpathutil"
	"github.com/fred-chen/qemu-provisioning/pkg/qemuimg"
)

// Deployer creates cluster directories. The zero value is not usable; use New.
type Deployer struct {
	// CacheDir enables the shared download cache for remote base images.
	// Empty disables caching.
	CacheDir string

	// hooks for tests
	createBackedDisk func(ctx context.Context, disk, baseImage string, size int64) error
	createDataDisk   func(ctx context.Context, disk string, size int64) error
	baseImageInfo    func(ctx context.Context, path string) (*qemuimg.Info, error)
	monitorPort      func() (int, error)
}

func New() *Deployer {
	return &Deployer{
		createBackedDisk: qemuimg.CreateBackedDisk,
		createDataDisk:   qemuimg.CreateDataDisk,
		baseImageInfo:    qemuimg.GetInfo,
		monitorPort:      freeport.TCP,
	}
}

// Deploy creates the cluster directory for y under baseDir. The cluster
// directory must not exist yet; a failed deploy leaves the partially created
// directory behind for inspection, matching the behavior of the original
// tooling.
func (d *Deployer) Deploy(ctx context.Context, y *clusteryaml.ClusterYAML, baseDir string) error {
	if err := clusteryaml.Validate(y); err != nil {
		return err
	}
	clusterDir := filepath.Join(baseDir, y.ClusterName)
	if _, err := os.Stat(clusterDir); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cluster directory %q already exists", clusterDir)
	}
	if err := os.MkdirAll(clusterDir, 0o755); err != nil {
		return err
	}

	for i := range y.Nodes {
		if err := d.deployNode(ctx, &y.Nodes[i], clusterDir); err != nil {
			return fmt.Errorf("failed to deploy node %q: %w", y.Nodes[i].Name, err)
		}
	}

	if err := writeScript(filepath.Join(clusterDir, "start_cluster.sh"), GenClusterStartScript(y)); err != nil {
		return err
	}
	if err := writeScript(filepath.Join(clusterDir, "stop_cluster.sh"), GenClusterStopScript(y)); err != nil {
		return err
	}
	logrus.Infof("Deployed cluster %q (%d nodes) under %q", y.ClusterName, len(y.Nodes), clusterDir)
	return nil
}

func (d *Deployer) deployNode(ctx context.Context, n *clusteryaml.Node, clusterDir string) error {
	logrus.Infof("Creating node %q", n.Name)
	nodeDir := filepath.Join(clusterDir, n.Name)
	if err := os.MkdirAll(nodeDir, 0o755); err != nil {
		return err
	}

	baseImage, err := d.ensureBaseImage(ctx, n, clusterDir)
	if err != nil {
		return err
	}

	systemDiskSize, err := units.RAMInBytes(n.SystemDiskSize)
	if err != nil {
		return fmt.Errorf("invalid systemDiskSize %q: %w", n.SystemDiskSize, err)
	}
	if err := d.createBackedDisk(ctx, filepath.Join(nodeDir, "system.qcow2"), baseImage, systemDiskSize); err != nil {
		return err
	}
	for i, disk := range n.DataDisks {
		size, err := units.RAMInBytes(disk.Size)
		if err != nil {
			return fmt.Errorf("invalid dataDiskSizes[%d].size %q: %w", i, disk.Size, err)
		}
		if err := d.createDataDisk(ctx, filepath.Join(nodeDir, fmt.Sprintf("data%d.qcow2", i+1)), size); err != nil {
			return err
		}
	}

	if err := cidata.GenerateISO9660(filepath.Join(nodeDir, "cloud-init"), n); err != nil {
		return err
	}

	port, err := d.monitorPort()
	if err != nil {
		return err
	}
	script, err := GenStartScript(n, port)
	if err != nil {
		return err
	}
	return writeScript(filepath.Join(nodeDir, "start.sh"), script)
}

// ensureBaseImage resolves the node's image location to a local path usable
// as a qcow2 backing file. Remote images are downloaded once per cluster into
// <clusterDir>/base and shared by every node referencing the same URL.
func (d *Deployer) ensureBaseImage(ctx context.Context, n *clusteryaml.Node, clusterDir string) (string, error) {
	var local string
	if downloader.IsLocal(n.ImagePath) {
		expanded, err := localpathutil.Expand(n.ImagePath)
		if err != nil {
			return "", err
		}
		if st, err := os.Stat(expanded); err != nil || !st.Mode().IsRegular() {
			return "", fmt.Errorf("base image %q is not a regular file", n.ImagePath)
		}
		logrus.Infof("Using base image %q", expanded)
		local = expanded
	} else {
		local = filepath.Join(clusterDir, "base", path.Base(n.ImagePath))
		res, err := downloader.Download(ctx, local, n.ImagePath,
			downloader.WithCacheDir(d.CacheDir),
			downloader.WithExpectedDigest(n.ImageDigest),
			downloader.WithDescription(fmt.Sprintf("base image for %q", n.Name)))
		if err != nil {
			return "", fmt.Errorf("failed to download %q: %w", n.ImagePath, err)
		}
		switch res.Status {
		case downloader.StatusDownloaded:
			logrus.Infof("Downloaded base image from %q", n.ImagePath)
		case downloader.StatusUsedCache:
			logrus.Infof("Using cache %q", res.CachePath)
		case downloader.StatusSkipped:
			logrus.Debugf("Base image %q already present", local)
		default:
			logrus.Warnf("Unexpected result from downloader.Download(): %+v", res)
		}
	}

	info, err := d.baseImageInfo(ctx, local)
	if err != nil {
		return "", fmt.Errorf("failed to inspect base image %q: %w", local, err)
	}
	if err := qemuimg.AcceptableAsBaseImage(info); err != nil {
		return "", err
	}
	return local, nil
}

func writeScript(path string, content []byte) error {
	return os.WriteFile(path, content, 0o755)
}
