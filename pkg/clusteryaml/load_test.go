// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package clusteryaml

import (
	"testing"

	"gotest.tools/v3/assert"
)

const exampleYAML = `
clusterName: ceph1
domainName: chenp.net
imagePath: https://cloud-images.ubuntu.com/jammy/current/jammy-server-cloudimg-amd64.img
systemDiskSize: 32G
dataDiskSizes:
  - size: 100G
  - size: 100G
    type: nvme
cpu: 4
mem: 8GiB
mtu: 9000
gateway: 10.1.0.1
nameserver: 10.1.0.1
guestOs: Ubuntu
authorized-keys:
  - ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAA test@host
nodes:
  - name: node0
    ipAddress: 10.1.0.60/24
  - name: node1
    ipAddress: 10.1.0.61/24
    mem: 16GiB
    guestOs: Alma9
`

func TestLoad(t *testing.T) {
	y, err := Load([]byte(exampleYAML), "cluster.yaml")
	assert.NilError(t, err)
	assert.Equal(t, "ceph1", y.ClusterName)
	assert.Equal(t, 2, len(y.Nodes))

	n0, n1 := &y.Nodes[0], &y.Nodes[1]

	// cluster-level values are flattened into the nodes
	assert.Equal(t, "8GiB", n0.Memory)
	assert.Equal(t, 4, n0.CPUs)
	assert.Equal(t, 9000, n0.MTU)
	assert.Equal(t, "chenp.net", n0.DomainName)
	assert.Equal(t, Ubuntu, n0.GuestOS)
	assert.Equal(t, 2, len(n0.DataDisks))
	assert.Equal(t, "virtio-blk-pci", n0.DataDisks[0].Type)
	assert.Equal(t, "nvme", n0.DataDisks[1].Type)
	assert.Equal(t, 1, len(n0.AuthorizedKeys))

	// node-level overrides win
	assert.Equal(t, "16GiB", n1.Memory)
	assert.Equal(t, Alma9, n1.GuestOS)

	assert.NilError(t, Validate(y))
}

func TestLoadDuplicateKey(t *testing.T) {
	_, err := Load([]byte("clusterName: a\nclusterName: b\n"), "cluster.yaml")
	assert.Assert(t, err != nil)
}

func TestLoadNotYAML(t *testing.T) {
	_, err := Load([]byte("{"), "cluster.yaml")
	assert.Assert(t, err != nil)
}
