// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package cloudinittypes

// NetworkConfig is a netplan v2 document.
type NetworkConfig struct {
	Version   int                 `yaml:"version"`
	Ethernets map[string]Ethernet `yaml:"ethernets,omitempty"`
}

type Ethernet struct {
	Match       *EthernetMatch `yaml:"match,omitempty"`
	SetName     string         `yaml:"set-name,omitempty"`
	Addresses   []string       `yaml:"addresses,omitempty"`
	Gateway4    string         `yaml:"gateway4,omitempty"`
	Nameservers *Nameservers   `yaml:"nameservers,omitempty"`
	MTU         int            `yaml:"mtu,omitempty"`
}

type EthernetMatch struct {
	MACAddress string `yaml:"macaddress,omitempty"`
}

type Nameservers struct {
	Addresses []string `yaml:"addresses,omitempty"`
	Search    []string `yaml:"search,omitempty"`
}
