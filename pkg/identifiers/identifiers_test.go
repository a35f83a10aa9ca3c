// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package identifiers

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestValidate(t *testing.T) {
	for _, s := range []string{"mycluster", "node0", "ceph-osd.1", "a_b-c.d"} {
		assert.NilError(t, Validate(s), s)
	}
	for _, s := range []string{"", ".node", "node/0", "node 0", "-node", strings.Repeat("n", 77)} {
		assert.Assert(t, Validate(s) != nil, "expected %q to be rejected", s)
	}
}
