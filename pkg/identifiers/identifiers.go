// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

// Package identifiers validates cluster and node names. Both are used as
// filesystem path components (the cluster directory and its per-node
// subdirectories), so the character set is restricted to alphanumerics with
// limited underscores, dashes and dots.
package identifiers

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	maxLength  = 76
	alphanum   = `[A-Za-z0-9]+`
	separators = `[._-]`
)

// identifierRe defines the pattern for valid identifiers.
var identifierRe = regexp.MustCompile(reAnchor(alphanum + reGroup(separators+reGroup(alphanum)) + "*"))

// Validate returns nil if the string s is a valid identifier.
func Validate(s string) error {
	if s == "" {
		return errors.New("identifier must not be empty")
	}
	if len(s) > maxLength {
		return fmt.Errorf("identifier %q greater than maximum length (%d characters)", s, maxLength)
	}
	if !identifierRe.MatchString(s) {
		return fmt.Errorf("identifier %q must match %v", s, identifierRe)
	}
	return nil
}

func reGroup(s string) string {
	return `(?:` + s + `)`
}

func reAnchor(s string) string {
	return `^` + s + `$`
}
