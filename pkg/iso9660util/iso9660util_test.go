// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package iso9660util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestWrite(t *testing.T) {
	isoPath := filepath.Join(t.TempDir(), "cidata.iso")
	layout := []Entry{
		{Path: "user-data", Reader: strings.NewReader("#cloud-config\n")},
		{Path: "meta-data", Reader: strings.NewReader("instance-id: node0\n")},
	}
	assert.NilError(t, Write(isoPath, "cidata", layout))

	ok, err := IsISO9660(isoPath)
	assert.NilError(t, err)
	assert.Assert(t, ok)
}

func TestIsISO9660NotAnImage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.iso")
	assert.NilError(t, os.WriteFile(p, []byte("not an iso"), 0o600))
	ok, err := IsISO9660(p)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}
