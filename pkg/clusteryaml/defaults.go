// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package clusteryaml

import (
	"crypto/sha256"
	"fmt"
	"net"
	"os"
	"os/exec"
)

const (
	defaultCPUs           = 2
	defaultMemory         = "4GiB"
	defaultSystemDiskSize = "32G"
	defaultMTU            = 1500
	defaultDataDiskType   = "virtio-blk-pci"
)

// MACAddress generates a deterministic MAC address from uniqueID, using the
// QEMU/KVM OUI (52:54:00) so guests are recognizable on the bridge.
func MACAddress(uniqueID string) string {
	sha := sha256.Sum256([]byte(uniqueID))
	hw := append(net.HardwareAddr{0x52, 0x54, 0x00}, sha[0:3]...)
	return hw.String()
}

// hostQEMUBinary picks the system emulator for the host distro. Enterprise
// Linux hosts ship qemu-kvm under /usr/libexec and do not have
// qemu-system-x86_64 in PATH.
func hostQEMUBinary() string {
	if _, err := exec.LookPath("qemu-system-x86_64"); err == nil {
		return "qemu-system-x86_64"
	}
	if st, err := os.Stat("/usr/libexec/qemu-kvm"); err == nil && st.Mode().IsRegular() {
		return "/usr/libexec/qemu-kvm"
	}
	return "qemu-system-x86_64"
}

// FillDefault fills cluster-level defaults and flattens cluster-level values
// into every node, so that consumers only ever look at the node.
func FillDefault(y *ClusterYAML, filePath string) {
	if y.CPUs == 0 {
		y.CPUs = defaultCPUs
	}
	if y.Memory == "" {
		y.Memory = defaultMemory
	}
	if y.SystemDiskSize == "" {
		y.SystemDiskSize = defaultSystemDiskSize
	}
	if y.MTU == 0 {
		y.MTU = defaultMTU
	}
	if y.GuestOS == "" {
		y.GuestOS = Ubuntu
	}
	if y.QEMUBinary == "" {
		y.QEMUBinary = hostQEMUBinary()
	}
	for i := range y.DataDisks {
		if y.DataDisks[i].Type == "" {
			y.DataDisks[i].Type = defaultDataDiskType
		}
	}

	for i := range y.Nodes {
		n := &y.Nodes[i]
		if n.DomainName == "" {
			n.DomainName = y.DomainName
		}
		if n.ImagePath == "" {
			n.ImagePath = y.ImagePath
			if n.ImageDigest == "" {
				n.ImageDigest = y.ImageDigest
			}
		}
		if n.SystemDiskSize == "" {
			n.SystemDiskSize = y.SystemDiskSize
		}
		if n.DataDisks == nil {
			n.DataDisks = y.DataDisks
		}
		for j := range n.DataDisks {
			if n.DataDisks[j].Type == "" {
				n.DataDisks[j].Type = defaultDataDiskType
			}
		}
		if n.CPUs == 0 {
			n.CPUs = y.CPUs
		}
		if n.Memory == "" {
			n.Memory = y.Memory
		}
		if n.MTU == 0 {
			n.MTU = y.MTU
		}
		if n.Gateway == "" {
			n.Gateway = y.Gateway
		}
		if n.Nameserver == "" {
			n.Nameserver = y.Nameserver
		}
		if n.GuestOS == "" {
			n.GuestOS = y.GuestOS
		}
		if n.AuthorizedKeys == nil {
			n.AuthorizedKeys = y.AuthorizedKeys
		}
		if n.QEMUBinary == "" {
			n.QEMUBinary = y.QEMUBinary
		}
		if n.MACAddress == "" {
			n.MACAddress = MACAddress(fmt.Sprintf("%s#%d", filePath, i))
		}
		if len(n.PrivateMACAddresses) == 0 {
			n.PrivateMACAddresses = []string{
				MACAddress(fmt.Sprintf("%s#%d/pri0", filePath, i)),
				MACAddress(fmt.Sprintf("%s#%d/pri1", filePath, i)),
			}
		}
	}
}
