// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

// Package cidata generates the cloud-init NoCloud seed for a cluster node:
// user-data, meta-data and (for netplan guests) network-config, plus the
// ISO9660 image QEMU attaches as a cdrom.
package cidata

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/fred-chen/qemu-provisioning/pkg/cidata/cloudinittypes"
	"github.com/fred-chen/qemu-provisioning/pkg/clusteryaml"
	"github.com/fred-chen/qemu-provisioning/pkg/iso9660util"
)

// ISOName is the seed image file name inside the node's cloud-init directory.
const ISOName = "cloud-init-provisioning.iso"

// defaultPasswd is the crypted console password of the default user
// (inherited from the cluster.py era; console login only, SSH password
// authentication stays disabled).
const defaultPasswd = "$6$j0iQN7y/xQ7RCfkU$NIJ1ONRVdJumo1KJCkpwlezoaZOqAE/0IR2UIwmh/S0vQKuDVzRQ3bf2uU3CUSBCF2BB.6W3b8yJMQ9cNaa8E0"

func boolPtr(b bool) *bool { return &b }

// GenerateISO9660 writes the cloud-init files for node n into cloudInitDir
// and builds the seed ISO from them.
func GenerateISO9660(cloudInitDir string, n *clusteryaml.Node) error {
	if err := os.MkdirAll(cloudInitDir, 0o755); err != nil {
		return err
	}

	files := map[string][]byte{}

	b, err := userData(n)
	if err != nil {
		return err
	}
	files["user-data"] = b

	b, err = metaData(n)
	if err != nil {
		return err
	}
	files["meta-data"] = b

	if clusteryaml.UsesNetplan(n.GuestOS) {
		b, err = networkConfig(n)
		if err != nil {
			return err
		}
		files["network-config"] = b
	}

	var layout []iso9660util.Entry
	for _, name := range []string{"user-data", "meta-data", "network-config"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		if err := os.WriteFile(filepath.Join(cloudInitDir, name), content, 0o644); err != nil {
			return err
		}
		layout = append(layout, iso9660util.Entry{Path: name, Reader: strings.NewReader(string(content))})
	}

	return iso9660util.Write(filepath.Join(cloudInitDir, ISOName), "cidata", layout)
}

func userData(n *clusteryaml.Node) ([]byte, error) {
	u := cloudinittypes.UserData{
		Hostname:       n.Name,
		ManageEtcHosts: boolPtr(false),
		SSHPwAuth:      boolPtr(false),
		DisableRoot:    boolPtr(false),
		Users: []cloudinittypes.User{
			{
				Name:              "ubuntu",
				Homedir:           "/home/ubuntu",
				Shell:             "/bin/bash",
				Groups:            "sudo",
				Sudo:              "ALL=(ALL) NOPASSWD:ALL",
				LockPasswd:        boolPtr(false),
				Passwd:            defaultPasswd,
				SSHAuthorizedKeys: n.AuthorizedKeys,
			},
			{
				Name:              "root",
				SSHAuthorizedKeys: n.AuthorizedKeys,
			},
		},
	}
	if domain := strings.Trim(n.DomainName, "."); domain != "" {
		u.FQDN = n.Name + "." + domain
	}
	if !clusteryaml.UsesNetplan(n.GuestOS) {
		// NetworkManager does not bring the renamed interface up on its own.
		u.BootCmd = []string{"nmcli device connect eth0"}
	}

	b, err := yaml.Marshal(&u)
	if err != nil {
		return nil, err
	}
	return append([]byte("#cloud-config\n\n"), b...), nil
}

func metaData(n *clusteryaml.Node) ([]byte, error) {
	m := cloudinittypes.MetaData{
		InstanceID:    n.Name,
		LocalHostname: n.Name,
	}
	if !clusteryaml.UsesNetplan(n.GuestOS) {
		s, err := networkInterfaces(n)
		if err != nil {
			return nil, err
		}
		m.NetworkInterfaces = s
	}
	return yaml.MarshalWithOptions(&m, yaml.UseLiteralStyleIfMultiline(true))
}

// networkInterfaces renders the legacy static interface block for guests
// without netplan support.
func networkInterfaces(n *clusteryaml.Node) (string, error) {
	prefix, err := netip.ParsePrefix(n.IPAddress)
	if err != nil {
		return "", fmt.Errorf("invalid ipAddress %q: %w", n.IPAddress, err)
	}
	mask := net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen())
	lines := []string{
		"iface eth0 inet static",
		"address " + prefix.Addr().String(),
		"netmask " + net.IP(mask).String(),
	}
	if n.Gateway != "" {
		lines = append(lines, "gateway "+n.Gateway)
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func networkConfig(n *clusteryaml.Node) ([]byte, error) {
	eth := cloudinittypes.Ethernet{
		Addresses: []string{n.IPAddress},
		Gateway4:  n.Gateway,
		MTU:       n.MTU,
	}
	if n.Nameserver != "" {
		eth.Nameservers = &cloudinittypes.Nameservers{
			Addresses: []string{n.Nameserver},
		}
		if domain := strings.Trim(n.DomainName, "."); domain != "" {
			eth.Nameservers.Search = []string{domain}
		}
	}
	cfg := cloudinittypes.NetworkConfig{
		Version: 2,
		Ethernets: map[string]cloudinittypes.Ethernet{
			"id0": {
				Match:   &cloudinittypes.EthernetMatch{MACAddress: n.MACAddress},
				SetName: "eth0",
			},
			"eth0": eth,
		},
	}
	return yaml.Marshal(&cfg)
}
