// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package cloudinittypes

type UserData struct {
	Hostname       string `yaml:"hostname,omitempty"`
	FQDN           string `yaml:"fqdn,omitempty"`
	ManageEtcHosts *bool  `yaml:"manage_etc_hosts,omitempty"`
	SSHPwAuth      *bool  `yaml:"ssh_pwauth,omitempty"`
	DisableRoot    *bool  `yaml:"disable_root,omitempty"`

	Users []User `yaml:"users,omitempty"`

	BootCmd []string `yaml:"bootcmd,omitempty"`
}

type User struct {
	Name              string   `yaml:"name,omitempty"`
	Homedir           string   `yaml:"home,omitempty"`
	Shell             string   `yaml:"shell,omitempty"`
	Groups            string   `yaml:"groups,omitempty"`
	Sudo              string   `yaml:"sudo,omitempty"`
	LockPasswd        *bool    `yaml:"lock_passwd,omitempty"`
	Passwd            string   `yaml:"passwd,omitempty"`
	SSHAuthorizedKeys []string `yaml:"ssh-authorized-keys,omitempty"`
}
