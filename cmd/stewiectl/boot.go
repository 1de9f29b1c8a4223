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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Caleb1994/stewieos/internal/bootconfig"
	"github.com/Caleb1994/stewieos/pkg/vfs"
	"github.com/Caleb1994/stewieos/pkg/vfs/memfs"
	"github.com/google/subcommands"
)

// bootCommand implements subcommands.Command for "boot": apply a boot
// manifest against a fresh VirtualFilesystem and report how many mounts
// it performed, the way initialize_filesystem() would at kernel
// startup (spec §4.2/§4.3).
type bootCommand struct {
	manifestPath string
}

func (*bootCommand) Name() string     { return "boot" }
func (*bootCommand) Synopsis() string { return "apply a boot manifest: register drivers and mount" }
func (*bootCommand) Usage() string {
	return "boot -manifest <path.toml>\n"
}

func (c *bootCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.manifestPath, "manifest", "", "path to a boot.toml manifest")
}

// knownDrivers maps a manifest driver name to a constructor. Only
// testfs ships with this repo; a real deployment would link in more
// and extend this table.
var knownDrivers = map[string]func() vfs.Driver{
	memfs.Name: func() vfs.Driver { return memfs.New() },
}

func (c *bootCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.manifestPath == "" {
		fmt.Fprintln(os.Stderr, "boot: -manifest is required")
		return subcommands.ExitUsageError
	}
	data, err := os.ReadFile(c.manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: %v\n", err)
		return subcommands.ExitFailure
	}
	manifest, err := bootconfig.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: parsing manifest: %v\n", err)
		return subcommands.ExitFailure
	}

	// initialize_filesystem() in the original runs before any sys_mount
	// call is possible; NewBootstrapRoot gives this port the same
	// empty-directory root to mount real filesystems over.
	fs := vfs.NewBootstrapRoot()
	for _, name := range manifest.Drivers {
		newDriver, ok := knownDrivers[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "boot: unknown driver %q\n", name)
			return subcommands.ExitFailure
		}
		if err := fs.Register(newDriver()); err != nil {
			fmt.Fprintf(os.Stderr, "boot: registering %q: %v\n", name, err)
			return subcommands.ExitFailure
		}
	}

	rootPath := vfs.Path{Dentry: fs.Root()}
	for _, m := range manifest.Mounts {
		var flags vfs.MountFlags
		if m.ReadOnly {
			flags |= vfs.MSRDONLY
		}
		if m.NoExec {
			flags |= vfs.MSNOEXEC
		}
		if err := fs.Mount(rootPath, m.Source, m.Target, m.FSType, flags, m.Data, vfs.RootCredentials); err != nil {
			fmt.Fprintf(os.Stderr, "boot: mounting %q at %q: %v\n", m.FSType, m.Target, err)
			return subcommands.ExitFailure
		}
	}

	fmt.Printf("boot: mounted %d filesystem(s)\n", len(manifest.Mounts))
	return subcommands.ExitSuccess
}
