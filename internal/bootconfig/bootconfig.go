// Copyright 2024 The stewieos Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootconfig parses the boot manifest that replaces the
// original kernel's hardcoded initialize_filesystem(): which
// filesystem drivers to register and which mounts to perform before
// handing control to an init process.
package bootconfig

import (
	"github.com/BurntSushi/toml"
)

// Mount is one [[mount]] table entry in the manifest.
type Mount struct {
	Source string `toml:"source"`
	Target string `toml:"target"`
	FSType string `toml:"fstype"`
	ReadOnly bool  `toml:"readonly"`
	NoExec   bool  `toml:"noexec"`
	Data     string `toml:"data"`
}

// Manifest is the root of a boot.toml document.
type Manifest struct {
	// Drivers lists the names of built-in filesystem drivers to
	// register before performing any mount (e.g. "testfs"). Resolving
	// the name to a concrete Driver implementation is the caller's job
	// (internal/bootconfig has no knowledge of any specific driver
	// package, to avoid an import cycle back into pkg/vfs/memfs and
	// whatever other drivers a deployment links in).
	Drivers []string `toml:"drivers"`
	Mounts  []Mount  `toml:"mount"`

	// Init names the manifest's init program. No code in this
	// repository execs it: stewiectl exec takes the path to execve from
	// its command line and appends InitArgs to that path's argv.
	Init     string   `toml:"init"`
	InitArgs []string `toml:"init_args"`
}

// Parse decodes a boot manifest from raw TOML bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
