// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package cloudinittypes

type MetaData struct {
	InstanceID    string `yaml:"instance-id,omitempty"`
	LocalHostname string `yaml:"local-hostname,omitempty"`

	// NetworkInterfaces carries a static interface definition for guests
	// whose cloud-init does not consume a netplan network-config (the
	// Enterprise Linux family).
	NetworkInterfaces string `yaml:"network-interfaces,omitempty"`
}
