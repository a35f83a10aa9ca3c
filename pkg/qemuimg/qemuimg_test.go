// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package qemuimg

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseInfo(t *testing.T) {
	t.Run("qcow2", func(t *testing.T) {
		// qemu-img create -f qcow2 foo.qcow2 4G
		// (QEMU 8.0)
		const s = `{
    "virtual-size": 4294967296,
    "filename": "foo.qcow2",
    "cluster-size": 65536,
    "format": "qcow2",
    "actual-size": 200704,
    "format-specific": {
        "type": "qcow2",
        "data": {
            "compat": "1.1",
            "compression-type": "zlib",
            "lazy-refcounts": false,
            "refcount-bits": 16,
            "corrupt": false,
            "extended-l2": false
        }
    },
    "dirty-flag": false
}`
		info, err := parseInfo([]byte(s))
		assert.NilError(t, err)
		assert.Equal(t, "qcow2", info.Format)
		assert.Equal(t, int64(4294967296), info.VSize)
		assert.Check(t, info.FormatSpecific != nil)
		qcow2 := info.FormatSpecific.Qcow2()
		assert.Check(t, qcow2 != nil)
		assert.Equal(t, "1.1", qcow2.Compat)
		assert.Equal(t, 16, qcow2.RefcountBits)
		assert.NilError(t, AcceptableAsBaseImage(info))
	})

	t.Run("backed qcow2", func(t *testing.T) {
		// qemu-img create -f qcow2 -F qcow2 -b base.qcow2 node.qcow2 32G
		const s = `{
    "virtual-size": 34359738368,
    "filename": "node.qcow2",
    "cluster-size": 65536,
    "format": "qcow2",
    "actual-size": 200704,
    "backing-filename": "base.qcow2",
    "full-backing-filename": "/data/base.qcow2",
    "backing-filename-format": "qcow2",
    "dirty-flag": false
}`
		info, err := parseInfo([]byte(s))
		assert.NilError(t, err)
		assert.Equal(t, "base.qcow2", info.BackingFilename)
		assert.ErrorContains(t, AcceptableAsBaseImage(info), "backing file")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseInfo([]byte("qcow2"))
		assert.Assert(t, err != nil)
	})
}
