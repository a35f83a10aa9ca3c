// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package clusteryaml

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/docker/go-units"

	"github.com/fred-chen/qemu-provisioning/pkg/identifiers"
)

// Validate checks a cluster definition after FillDefault has run.
func Validate(y *ClusterYAML) error {
	if err := identifiers.Validate(y.ClusterName); err != nil {
		return fmt.Errorf("field `clusterName` is invalid: %w", err)
	}
	if len(y.Nodes) == 0 {
		return errors.New("field `nodes` must be set")
	}

	seen := make(map[string]struct{}, len(y.Nodes))
	for i := range y.Nodes {
		n := &y.Nodes[i]
		field := fmt.Sprintf("nodes[%d]", i)
		if err := identifiers.Validate(n.Name); err != nil {
			return fmt.Errorf("field `%s.name` is invalid: %w", field, err)
		}
		if _, ok := seen[n.Name]; ok {
			return fmt.Errorf("field `%s.name` is a duplicate: %q", field, n.Name)
		}
		seen[n.Name] = struct{}{}

		if err := validateNode(n, field); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, field string) error {
	if n.ImagePath == "" {
		return fmt.Errorf("field `%s.imagePath` must be set", field)
	}
	// A local imagePath does NOT need to exist yet; it is resolved at deploy
	// time against the image cache.

	if _, err := units.RAMInBytes(n.SystemDiskSize); err != nil {
		return fmt.Errorf("field `%s.systemDiskSize` has an invalid value: %w", field, err)
	}
	for j, d := range n.DataDisks {
		if _, err := units.RAMInBytes(d.Size); err != nil {
			return fmt.Errorf("field `%s.dataDiskSizes[%d].size` has an invalid value: %w", field, j, err)
		}
	}
	if _, err := units.RAMInBytes(n.Memory); err != nil {
		return fmt.Errorf("field `%s.mem` has an invalid value: %w", field, err)
	}
	if n.CPUs <= 0 {
		return fmt.Errorf("field `%s.cpu` must be positive", field)
	}
	if n.MTU <= 0 {
		return fmt.Errorf("field `%s.mtu` must be positive", field)
	}

	if !slices.Contains(GuestOSes, n.GuestOS) {
		return fmt.Errorf("field `%s.guestOs` must be one of %v, got %q", field, GuestOSes, n.GuestOS)
	}

	prefix, err := netip.ParsePrefix(n.IPAddress)
	if err != nil {
		return fmt.Errorf("field `%s.ipAddress` must be an address with a prefix length (like %q): %w",
			field, "10.1.0.60/24", err)
	}
	// The classic network-interfaces block written for guests without netplan
	// cannot express an IPv6 address.
	if !UsesNetplan(n.GuestOS) && !prefix.Addr().Is4() {
		return fmt.Errorf("field `%s.ipAddress` must be an IPv4 address for guest OS %q, got %q",
			field, n.GuestOS, n.IPAddress)
	}
	if n.Gateway != "" {
		if _, err := netip.ParseAddr(n.Gateway); err != nil {
			return fmt.Errorf("field `%s.gateway` has an invalid value: %w", field, err)
		}
	}
	if n.Nameserver != "" {
		if _, err := netip.ParseAddr(n.Nameserver); err != nil {
			return fmt.Errorf("field `%s.nameserver` has an invalid value: %w", field, err)
		}
	}

	for _, mac := range append([]string{n.MACAddress}, n.PrivateMACAddresses...) {
		hw, err := net.ParseMAC(mac)
		if err != nil {
			return fmt.Errorf("field `%s.macAddress` has an invalid value: %w", field, err)
		}
		if len(hw) != 6 {
			return fmt.Errorf("field `%s.macAddress` must be a 48 bit (6 bytes) MAC address; actual length of %q is %d bytes",
				field, mac, len(hw))
		}
	}

	if n.ImageDigest != "" {
		if !n.ImageDigest.Algorithm().Available() {
			return fmt.Errorf("field `%s.imageDigest` refers to an unavailable digest algorithm", field)
		}
		if err := n.ImageDigest.Validate(); err != nil {
			return fmt.Errorf("field `%s.imageDigest` is invalid: %w", field, err)
		}
	}

	if strings.TrimSpace(n.QEMUBinary) == "" {
		return fmt.Errorf("field `%s.qemubin` must be set", field)
	}
	return nil
}
