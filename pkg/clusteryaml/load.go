// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package clusteryaml

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Load loads the YAML bytes and fulfills unspecified fields with the default
// values. filePath seeds the deterministic MAC address generation.
//
// Load does not validate. Use Validate for validation.
func Load(b []byte, filePath string) (*ClusterYAML, error) {
	var y ClusterYAML
	if err := yaml.UnmarshalWithOptions(b, &y); err != nil {
		return nil, err
	}
	FillDefault(&y, filePath)
	return &y, nil
}

// LoadFile is Load for a file on disk.
func LoadFile(filePath string) (*ClusterYAML, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return Load(b, filePath)
}
