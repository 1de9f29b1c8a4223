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

// Command stewiectl is an operator CLI for driving the VFS and loader
// core outside of a kernel build: apply a boot manifest, or exec a
// binary against an already-mounted tree, for inspection.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/Caleb1994/stewieos/pkg/klog"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCommand{}, "")
	subcommands.Register(&execCommand{}, "")

	flag.Parse()
	klog.SetLevel(logrus.InfoLevel)
	os.Exit(int(subcommands.Execute(context.Background())))
}
