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
	"github.com/Caleb1994/stewieos/pkg/execformat"
	"github.com/Caleb1994/stewieos/pkg/execformat/flatfmt"
	"github.com/Caleb1994/stewieos/pkg/mm"
	"github.com/Caleb1994/stewieos/pkg/task"
	"github.com/Caleb1994/stewieos/pkg/vfs"
	"github.com/google/subcommands"
)

// execCommand implements subcommands.Command for "exec": boot the
// manifest's mounts, then drive execve against a path within, printing
// the resulting register frame for inspection (spec §4.6).
type execCommand struct {
	manifestPath string
	path         string
}

func (*execCommand) Name() string     { return "exec" }
func (*execCommand) Synopsis() string { return "boot a manifest and execve a path, printing the register frame" }
func (*execCommand) Usage() string {
	return "exec -manifest <path.toml> <path>\n"
}

func (c *execCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.manifestPath, "manifest", "", "path to a boot.toml manifest")
}

func (c *execCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || c.manifestPath == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c.path = f.Arg(0)

	data, err := os.ReadFile(c.manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exec: %v\n", err)
		return subcommands.ExitFailure
	}
	manifest, err := bootconfig.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exec: parsing manifest: %v\n", err)
		return subcommands.ExitFailure
	}

	fs := vfs.NewBootstrapRoot()
	for _, name := range manifest.Drivers {
		newDriver, ok := knownDrivers[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "exec: unknown driver %q\n", name)
			return subcommands.ExitFailure
		}
		if err := fs.Register(newDriver()); err != nil {
			fmt.Fprintf(os.Stderr, "exec: registering %q: %v\n", name, err)
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
			fmt.Fprintf(os.Stderr, "exec: mounting %q at %q: %v\n", m.FSType, m.Target, err)
			return subcommands.ExitFailure
		}
	}

	cwd, err := fs.Resolve(rootPath, "/", vfs.RootCredentials)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exec: resolving /: %v\n", err)
		return subcommands.ExitFailure
	}

	fakeMM := mm.NewFake(0x08000000, 4<<20, 0x08000000+4<<20)
	t := task.New(vfs.RootCredentials, cwd, fakeMM)

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(fakeMM))

	args := append([]string{c.path}, manifest.InitArgs...)
	if err := reg.Execve(t, fs, c.path, args, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "exec: execve %q: %v\n", c.path, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("exec: entry=0x%x sp=0x%x bssend=0x%x\n", t.Regs.EIP, t.Regs.UserESP, t.DataEnd)
	return subcommands.ExitSuccess
}
