// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package localpathutil

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestExpandHome(t *testing.T) {
	home := filepath.FromSlash("/home/user")

	s, err := ExpandHome("~", home)
	assert.NilError(t, err)
	assert.Equal(t, home, s)

	s, err = ExpandHome("~/images/base.img", home)
	assert.NilError(t, err)
	assert.Equal(t, filepath.Join(home, "images/base.img"), s)

	_, err = ExpandHome("~user/images", home)
	assert.Assert(t, err != nil)

	_, err = ExpandHome("", home)
	assert.Assert(t, err != nil)
}
