// SPDX-FileCopyrightText: Copyright The qemu-provisioning Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/docker/go-units"

	"github.com/fred-chen/qemu-provisioning/pkg/cidata"
	"github.com/fred-chen/qemu-provisioning/pkg/clusteryaml"
)

//go:embed start.sh.tmpl
var startScriptTmpl string

var startScript = template.Must(template.New("start.sh").Parse(startScriptTmpl))

type dataDiskArg struct {
	N    int
	Type string
}

type startScriptArgs struct {
	Name        string
	QEMUBinary  string
	CPUs        int
	MemoryMiB   int64
	MTU         int
	MACAddress  string
	PrivateMAC0 string
	PrivateMAC1 string
	MonitorPort int
	ISOName     string
	DataDisks   []dataDiskArg
}

// GenStartScript renders the per-node start.sh. The host must provide two
// bridges before the script is run: br0 for public access and br1 for the
// private data links.
func GenStartScript(n *clusteryaml.Node, monitorPort int) ([]byte, error) {
	memBytes, err := units.RAMInBytes(n.Memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory %q: %w", n.Memory, err)
	}
	if len(n.PrivateMACAddresses) != 2 {
		return nil, fmt.Errorf("node %q must have 2 private MAC addresses, got %d", n.Name, len(n.PrivateMACAddresses))
	}
	args := startScriptArgs{
		Name:        n.Name,
		QEMUBinary:  n.QEMUBinary,
		CPUs:        n.CPUs,
		MemoryMiB:   memBytes / units.MiB,
		MTU:         n.MTU,
		MACAddress:  n.MACAddress,
		PrivateMAC0: n.PrivateMACAddresses[0],
		PrivateMAC1: n.PrivateMACAddresses[1],
		MonitorPort: monitorPort,
		ISOName:     cidata.ISOName,
	}
	for i := range n.DataDisks {
		args.DataDisks = append(args.DataDisks, dataDiskArg{N: i + 1, Type: n.DataDisks[i].Type})
	}
	var b bytes.Buffer
	if err := startScript.Execute(&b, args); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// GenClusterStartScript renders start_cluster.sh, which starts the nodes one
// by one.
func GenClusterStartScript(y *clusteryaml.ClusterYAML) []byte {
	var b strings.Builder
	b.WriteString("#!/usr/bin/bash\n")
	for i := range y.Nodes {
		fmt.Fprintf(&b, "cd %s && ./start.sh && cd ..\n", y.Nodes[i].Name)
	}
	return []byte(b.String())
}

// GenClusterStopScript renders stop_cluster.sh, which terminates each node
// via the pidfile written by its QEMU process.
func GenClusterStopScript(y *clusteryaml.ClusterYAML) []byte {
	var b strings.Builder
	b.WriteString("#!/usr/bin/bash\n")
	for i := range y.Nodes {
		name := y.Nodes[i].Name
		fmt.Fprintf(&b, "[[ -f %s/qemu.pid ]] && kill $(cat %s/qemu.pid)\n", name, name)
	}
	return []byte(b.String())
}
