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

// Package mm defines the address-space collaborator that execve drives
// through its point-of-no-return (spec §4.6 step 7, §5 "Address-space
// mutation"). Page-directory manipulation and kernel heap allocation
// are out of this core's scope (spec §1); MemoryManager is the seam
// the loader calls through, not an implementation of it.
package mm

// MemoryManager is the per-task address-space collaborator. It stands
// in for the original's strip_page_dir/alloc_page pair and the raw
// pointer writes sys_execve performs directly into the new user stack.
type MemoryManager interface {
	// StripUserMappings tears down every user-space mapping of the
	// current address space (original: strip_page_dir(curdir)). There
	// is no going back from this call; a failure after it must not be
	// retried (spec §5).
	StripUserMappings() error

	// MapStackPages installs fresh, zeroed pages covering [low, high)
	// in the (now-empty) user address space (original's per-page
	// alloc_page loop from TASK_STACK_INIT_BASE to TASK_STACK_START).
	MapStackPages(low, high uintptr) error

	// WriteUserMemory copies data into the user address space starting
	// at addr. Used to lay out the argument/environment block mirrored
	// onto the new stack (spec §4.6 step 7) and the argc/argv/envp
	// entry trio (step 9).
	WriteUserMemory(addr uintptr, data []byte) error

	// MapSegment installs a loadable segment of a binary image at a
	// fixed user virtual address, used by format drivers' LoadExec.
	MapSegment(addr uintptr, data []byte, writable, executable bool) error

	// StackTop reports the address the new user stack grows down from
	// (TASK_STACK_START in the original).
	StackTop() uintptr
}
