// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package clusteryaml

import (
	"net"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestFillDefault(t *testing.T) {
	y := &ClusterYAML{
		ClusterName: "c1",
		ImagePath:   "focal-server-cloudimg-amd64.img",
		Nodes: []Node{
			{Name: "node0", IPAddress: "10.1.0.60/24"},
		},
	}
	FillDefault(y, "cluster.yaml")

	n := &y.Nodes[0]
	assert.Equal(t, defaultCPUs, n.CPUs)
	assert.Equal(t, defaultMemory, n.Memory)
	assert.Equal(t, defaultSystemDiskSize, n.SystemDiskSize)
	assert.Equal(t, defaultMTU, n.MTU)
	assert.Equal(t, Ubuntu, n.GuestOS)
	assert.Assert(t, n.QEMUBinary != "")
	assert.Equal(t, 2, len(n.PrivateMACAddresses))
}

func TestMACAddress(t *testing.T) {
	mac := MACAddress("cluster.yaml#0")
	hw, err := net.ParseMAC(mac)
	assert.NilError(t, err)
	assert.Equal(t, 6, len(hw))
	assert.Assert(t, strings.HasPrefix(mac, "52:54:00:"), mac)

	// deterministic, and distinct per unique ID
	assert.Equal(t, mac, MACAddress("cluster.yaml#0"))
	assert.Assert(t, mac != MACAddress("cluster.yaml#1"))
}

func TestFillDefaultKeepsOverrides(t *testing.T) {
	y := &ClusterYAML{
		ClusterName: "c1",
		ImagePath:   "base.img",
		Memory:      "8GiB",
		Nodes: []Node{
			{Name: "node0", IPAddress: "10.1.0.60/24", MACAddress: "11:22:33:44:55:66", Memory: "2GiB"},
		},
	}
	FillDefault(y, "cluster.yaml")
	assert.Equal(t, "11:22:33:44:55:66", y.Nodes[0].MACAddress)
	assert.Equal(t, "2GiB", y.Nodes[0].Memory)
}
