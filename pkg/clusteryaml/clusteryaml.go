// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

// Package clusteryaml defines the declarative cluster definition consumed by
// `qprovctl deploy`. Cluster-level values act as defaults for every node;
// a node may override any of them.
package clusteryaml

import "github.com/opencontainers/go-digest"

type ClusterYAML struct {
	ClusterName    string        `yaml:"clusterName"` // REQUIRED
	DomainName     string        `yaml:"domainName,omitempty"`
	ImagePath      string        `yaml:"imagePath"` // REQUIRED; local path or http(s) URL of the base cloud image
	ImageDigest    digest.Digest `yaml:"imageDigest,omitempty"`
	SystemDiskSize string        `yaml:"systemDiskSize,omitempty"` // go-units.RAMInBytes
	DataDisks      []DataDisk    `yaml:"dataDiskSizes,omitempty"`
	CPUs           int           `yaml:"cpu,omitempty"`
	Memory         string        `yaml:"mem,omitempty"` // go-units.RAMInBytes
	MTU            int           `yaml:"mtu,omitempty"`
	Gateway        string        `yaml:"gateway,omitempty"`
	Nameserver     string        `yaml:"nameserver,omitempty"`
	GuestOS        GuestOS       `yaml:"guestOs,omitempty"`
	AuthorizedKeys []string      `yaml:"authorized-keys,omitempty"`
	QEMUBinary     string        `yaml:"qemubin,omitempty"`
	Nodes          []Node        `yaml:"nodes"` // REQUIRED
}

type GuestOS = string

const (
	Ubuntu  GuestOS = "Ubuntu"
	Debian  GuestOS = "Debian GNU/Linux"
	CentOS7 GuestOS = "CentOS7"
	CentOS8 GuestOS = "CentOS8"
	Alma8   GuestOS = "Alma8"
	Alma9   GuestOS = "Alma9"
)

// GuestOSes lists the supported guest OS values.
var GuestOSes = []GuestOS{Ubuntu, Debian, CentOS7, CentOS8, Alma8, Alma9}

// UsesNetplan reports whether the guest configures networking via a netplan
// network-config file (as opposed to a network-interfaces block embedded in
// the cloud-init meta-data).
func UsesNetplan(os GuestOS) bool {
	switch os {
	case Ubuntu, Debian:
		return true
	default:
		return false
	}
}

type DataDisk struct {
	Size string `yaml:"size"`           // REQUIRED; go-units.RAMInBytes
	Type string `yaml:"type,omitempty"` // QEMU device type, default "virtio-blk-pci"
}

// Node describes a single VM. Every field except Name, IPAddress and the MAC
// addresses falls back to the cluster-level value of the same name.
type Node struct {
	Name      string `yaml:"name"`      // REQUIRED
	IPAddress string `yaml:"ipAddress"` // REQUIRED; CIDR form, e.g. "10.1.0.60/24"

	// MACAddress is the public NIC address put into the cloud-init network
	// configuration. PrivateMACAddresses are for the two data-link NICs.
	// All are generated deterministically when unset.
	MACAddress          string   `yaml:"macAddress,omitempty"`
	PrivateMACAddresses []string `yaml:"privateMacAddresses,omitempty"`

	DomainName     string        `yaml:"domainName,omitempty"`
	ImagePath      string        `yaml:"imagePath,omitempty"`
	ImageDigest    digest.Digest `yaml:"imageDigest,omitempty"`
	SystemDiskSize string        `yaml:"systemDiskSize,omitempty"`
	DataDisks      []DataDisk    `yaml:"dataDiskSizes,omitempty"`
	CPUs           int           `yaml:"cpu,omitempty"`
	Memory         string        `yaml:"mem,omitempty"`
	MTU            int           `yaml:"mtu,omitempty"`
	Gateway        string        `yaml:"gateway,omitempty"`
	Nameserver     string        `yaml:"nameserver,omitempty"`
	GuestOS        GuestOS       `yaml:"guestOs,omitempty"`
	AuthorizedKeys []string      `yaml:"authorized-keys,omitempty"`
	QEMUBinary     string        `yaml:"qemubin,omitempty"`
}
