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

// Package execformat implements the exec-format registry and the
// execve/insmod/rmmod operations that drive it (spec §4.6). Grounded
// directly on original_source/kernel/src/exec.c: g_exec_type's
// prepend-registration list, sys_execve's argument staging and
// point-of-no-return address-space rewrite, and sys_insmod/sys_rmmod's
// module-list management.
package execformat

import (
	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/klog"
	"github.com/Caleb1994/stewieos/pkg/refs"
	"github.com/Caleb1994/stewieos/pkg/task"
	"github.com/Caleb1994/stewieos/pkg/vfs"
	"github.com/sirupsen/logrus"
)

// headerSize is the fixed read-ahead buffer sys_execve fills from
// offset zero before asking any driver to check the file (256 bytes in
// the original).
const headerSize = 256

// ExecContext is exec_t: the per-attempt state format drivers inspect
// and populate. File is held read-only for the duration of the call;
// Argv/Envp are the caller-supplied vectors, staged into the new
// address space by Execve before LoadExec runs. A driver's LoadExec
// sets Entry and BSSEnd.
type ExecContext struct {
	File   *vfs.File
	Header [headerSize]byte
	Argv   []string
	Envp   []string

	Entry  uintptr
	BSSEnd uintptr
}

// ExecLoader is the exec-format vtable's check_exec/load_exec pair
// (spec §6). The original only consults check_exec for types that
// implement load_exec at all, so this port bundles both into one
// capability: a format with no exec support simply doesn't implement
// ExecLoader.
type ExecLoader interface {
	// CheckExec reports whether ctx.Header names a binary this driver
	// recognizes.
	CheckExec(ctx *ExecContext) bool
	// LoadExec maps ctx.File's code/data segments into the task's
	// (already address-space-stripped) memory manager and sets
	// ctx.Entry/ctx.BSSEnd.
	LoadExec(ctx *ExecContext) error
}

// ModuleLoader is the exec-format vtable's load_module slot. Its
// three-value return preserves the original's tri-state
// discrimination without the NULL/IS_ERR pointer-tagging trick: matched
// is false when this driver doesn't recognize file at all (try the
// next driver); matched is true with a non-nil err when the driver
// recognized the file but failed to load it (stop and propagate); and
// matched is true with a non-nil module on success.
type ModuleLoader interface {
	LoadModule(file *vfs.File) (module *Module, matched bool, err error)
}

// Format is one registered exec-format driver's identity. A driver
// implements ExecLoader, ModuleLoader, or both.
type Format interface {
	Name() string
}

// Module is a loaded kernel module (spec §3, "Module"). OnLoad and
// OnRemove mirror module_t's optional m_load/m_remove function
// pointers: since Module is a single concrete type rather than a
// polymorphic driver, plain nilable func fields are the direct Go
// analogue of the C optional callback, not a capability interface.
//
// Count here tracks external references held against the module (the
// original's m_refs), not ownership of the Module value itself: it
// starts at zero on insmod and rmmod refuses removal while it is
// nonzero, unlike the dentries, inodes, mounts and files of this core,
// which start at one.
type Module struct {
	refs.Count

	Name     string
	LoadAddr uintptr

	OnLoad   func(*Module) error
	OnRemove func(*Module) error
}

// Registry holds the registered exec-format drivers and the live
// module list (spec §4.6). Formats are tried in most-recently-
// registered-first order, matching register_exec_type's list-head
// prepend.
type Registry struct {
	formats []Format
	modules []*Module
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a format driver, to be tried before any driver
// registered earlier (original: register_exec_type prepends to
// g_exec_type).
func (r *Registry) Register(f Format) {
	r.formats = append([]Format{f}, r.formats...)
}

// Execve implements sys_execve (spec §4.6). argv/envp are plain Go
// string slices; this port has no C-style NUL-terminated pointer
// arrays to walk, but still replicates the original's staging,
// size-capping, and point-of-no-return sequencing exactly, since those
// are the operation's actual contract, not an artifact of C memory
// layout.
func (r *Registry) Execve(t *task.Task, vfsInst *vfs.VirtualFilesystem, filename string, argv, envp []string) error {
	f, err := vfsInst.OpenFile(t.Cwd, t.Credentials, filename, vfs.ORDONLY, 0)
	if err != nil {
		return err
	}
	if err := vfsInst.PathAccess(f.Path(), vfs.XOK, t.Credentials); err != nil {
		f.Path().Put()
		return err
	}

	ctx := &ExecContext{File: f, Argv: argv, Envp: envp}
	n, _ := f.Impl().(vfs.FileReader)
	if n != nil {
		f.SetOffset(0)
		n.ReadFile(f, ctx.Header[:])
	}

	var chosen ExecLoader
	for _, format := range r.formats {
		loader, ok := format.(ExecLoader)
		if !ok {
			continue
		}
		if loader.CheckExec(ctx) {
			chosen = loader
			break
		}
	}
	if chosen == nil {
		f.Path().Put()
		return errno.ENOEXEC
	}

	argsz, envsz := packedSize(argv), packedSize(envp)
	argc, envc := uint32(len(argv)), uint32(len(envp))
	totalArgSize := argsz + envsz + pointerSize*(argc+1) + pointerSize*(envc+1)
	if totalArgSize > task.MaxArgSize {
		f.Path().Put()
		return errno.E2BIG
	}

	// Point of no return: the original has no recovery path past this
	// line (spec §5, "Address-space mutation").
	if err := t.MM.StripUserMappings(); err != nil {
		klog.Error("address space strip failed mid-exec", logrus.Fields{"error": err.Error()})
		return err
	}

	stackTop := t.MM.StackTop()
	stackBase := stackTop - uintptr(totalArgSize)
	if err := t.MM.MapStackPages(stackBase-4096, stackTop); err != nil {
		return err
	}
	staged := stageArguments(argv, envp, stackBase)
	if err := t.MM.WriteUserMemory(stackBase, staged); err != nil {
		return err
	}

	if err := chosen.LoadExec(ctx); err != nil {
		// Unrecoverable: the address space is already gone (spec §4.6
		// step 8's "failure ... causes an unrecoverable task exit").
		// Without a scheduler to call sys_exit through, this port
		// surfaces the error to the caller, who owns task teardown.
		return err
	}

	argvAddr := stackBase
	envpAddr := argvAddr + pointerSize*uintptr(argc+1)
	entryTrio := make([]byte, 12)
	putU32(entryTrio[0:4], uint32(argc))
	putU32(entryTrio[4:8], uint32(argvAddr))
	putU32(entryTrio[8:12], uint32(envpAddr))
	if err := t.MM.WriteUserMemory(argvAddr-12, entryTrio); err != nil {
		return err
	}

	t.EnterUserMode(ctx.Entry, argvAddr-12, ctx.BSSEnd)
	f.Path().Put()
	return nil
}

// Insmod implements sys_insmod (spec §4.6): iterate the registered
// module loaders, stopping at the first that claims the file.
func (r *Registry) Insmod(t *task.Task, vfsInst *vfs.VirtualFilesystem, filename string) error {
	f, err := vfsInst.OpenFile(t.Cwd, t.Credentials, filename, vfs.ORDONLY, 0)
	if err != nil {
		return err
	}

	var module *Module
	for _, format := range r.formats {
		loader, ok := format.(ModuleLoader)
		if !ok {
			continue
		}
		m, matched, err := loader.LoadModule(f)
		if !matched {
			continue
		}
		if err != nil {
			f.Path().Put()
			return err
		}
		module = m
		break
	}

	if module == nil {
		f.Path().Put()
		return errno.ENOEXEC
	}

	module.Count.Init(0)
	if module.OnLoad != nil {
		if err := module.OnLoad(module); err != nil {
			f.Path().Put()
			return err
		}
	}
	r.modules = append(r.modules, module)

	klog.Notice("loaded module", logrus.Fields{
		"name":    module.Name,
		"address": module.LoadAddr,
	})
	f.Path().Put()
	return nil
}

// Rmmod implements sys_rmmod (spec §4.6).
func (r *Registry) Rmmod(name string) error {
	for i, m := range r.modules {
		if m.Name != name {
			continue
		}
		if m.Load() != 0 {
			return errno.EBUSY
		}
		if m.OnRemove != nil {
			if err := m.OnRemove(m); err != nil {
				return err
			}
		}
		r.modules = append(r.modules[:i], r.modules[i+1:]...)
		return nil
	}
	return errno.ENOENT
}

const pointerSize = 4

func packedSize(strs []string) uint32 {
	var n uint32
	for _, s := range strs {
		n += uint32(len(s)) + 1
	}
	return n
}

// stageArguments replicates the original's kernel staging buffer
// layout (argv[0..argc] pointers | envp[0..envc] pointers | packed
// strings), expressed here directly as the final user-stack image
// rooted at base, since this port writes straight to the destination
// address space instead of staging in kernel memory first and copying
// a second time (spec §4.6 steps 6-7, §6 "Argument block layout").
// Pointer-array entries hold real user addresses (base-relative), not
// buffer offsets, so a reader of the staged image sees exactly what
// user code would dereference.
func stageArguments(argv, envp []string, base uintptr) []byte {
	argc, envc := uint32(len(argv)), uint32(len(envp))
	argsz, envsz := packedSize(argv), packedSize(envp)
	arraysSize := pointerSize * (argc + 1 + envc + 1)
	total := argsz + envsz + arraysSize

	buf := make([]byte, total)
	argvArr := buf[0 : pointerSize*(argc+1)]
	envpArr := buf[pointerSize*(argc+1) : arraysSize]
	strs := buf[arraysSize:]

	strAddr := uint32(base) + arraysSize
	strOff := uint32(0)
	for i, s := range argv {
		putU32(argvArr[pointerSize*i:], strAddr+strOff)
		copy(strs[strOff:], s)
		strOff += uint32(len(s)) + 1
	}
	putU32(argvArr[pointerSize*argc:], 0)

	for i, s := range envp {
		putU32(envpArr[pointerSize*i:], strAddr+strOff)
		copy(strs[strOff:], s)
		strOff += uint32(len(s)) + 1
	}
	putU32(envpArr[pointerSize*envc:], 0)

	return buf
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
