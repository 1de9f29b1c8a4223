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

// Package task holds the slice of "current task" state this core
// actually touches: credentials, working directory, open-file table,
// address space, and register frame (spec §1's task/scheduler
// subsystem is otherwise out of scope — fork/exit/preemption are not
// modeled here).
package task

import (
	"github.com/Caleb1994/stewieos/pkg/mm"
	"github.com/Caleb1994/stewieos/pkg/vfs"
)

// MaxOpenFiles is TASK_MAX_OPEN_FILES: the fixed capacity of a task's
// open-file table (spec §4.5).
const MaxOpenFiles = 32

// MaxArgSize is TASK_MAX_ARG_SIZE: the cap on execve's combined
// argument and environment block (spec §4.6 step 5).
const MaxArgSize = 16 * 1024

// Flag bits mirroring t_flags. TF_EXECVE is the only one this core
// sets (spec §4.6 step 11).
type Flag uint32

const (
	// FlagExecve marks a task that has just replaced its image via
	// execve, surrendering the remainder of its time slice.
	FlagExecve Flag = 1 << iota
)

// RegisterFrame is the subset of t_regs execve rewrites: instruction
// pointer, user stack pointer, flags register, and the three segment
// selectors loaded on return to user mode (spec §4.6 step 10). Field
// names follow the original's register names rather than a generic
// "PC"/"SP" to keep the mapping to spec §4.6 legible.
type RegisterFrame struct {
	EIP    uintptr
	UserESP uintptr
	EFLAGS uint32
	CS     uint16
	SS     uint16
	DS     uint16
}

// canonicalEFLAGS is the value the original sets unconditionally after
// a successful exec: interrupts enabled (IF, bit 9), the ID flag (bit
// 21) set, IOPL left at ring 0 (0x200200 in the C source).
const canonicalEFLAGS = 0x200200

// Task is the "current task" seam this core needs: credentials for
// permission checks, a working directory for relative path resolution,
// an open-file table, an address space, and a register frame. The
// scheduler that owns and switches between Tasks is out of scope (spec
// §1).
type Task struct {
	Credentials vfs.Credentials
	Cwd         vfs.Path
	Files       *vfs.OpenFileTable
	MM          mm.MemoryManager
	Regs        RegisterFrame

	// Flags holds the TF_* bits; only FlagExecve is modeled.
	Flags Flag
	// DataEnd is t_dataend: the end of the loaded image's BSS segment,
	// set from exec.bssend on a successful exec (spec §4.6 step 8).
	DataEnd uintptr
}

// New constructs a Task rooted at cwd, with its own fixed-capacity
// open-file table and the given address space.
func New(creds vfs.Credentials, cwd vfs.Path, memoryManager mm.MemoryManager) *Task {
	return &Task{
		Credentials: creds,
		Cwd:         cwd,
		Files:       vfs.NewOpenFileTable(MaxOpenFiles),
		MM:          memoryManager,
	}
}

// EnterUserMode applies the post-exec register frame (spec §4.6 steps
// 10-11): zero the frame, then set entry point, user stack pointer,
// the canonical flags value, and the user-mode segment selectors.
// Real hardware re-entry (the halt-until-interrupt loop) is the
// scheduler's job and out of scope here; this is the point at which
// that handoff would occur.
func (t *Task) EnterUserMode(entry, userStack uintptr, bssEnd uintptr) {
	t.Regs = RegisterFrame{
		EIP:     entry,
		UserESP: userStack,
		EFLAGS:  canonicalEFLAGS,
		CS:      0x1B,
		SS:      0x23,
		DS:      0x23,
	}
	t.Flags |= FlagExecve
	t.DataEnd = bssEnd
}
