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

package vfs

import (
	"sync"

	"github.com/Caleb1994/stewieos/pkg/refs"
)

// File is an open file description: state shareable across descriptors
// via dup (spec §3, "File description"). It exclusively owns a resolved
// Path.
type File struct {
	refs.Count

	path   Path
	status OpenFlags
	impl   any

	mu     sync.Mutex
	offset int64
}

func newFile(path Path, status OpenFlags, impl any) *File {
	f := &File{path: path, status: status, impl: impl}
	f.Count.Init(1)
	return f
}

// Path returns the file's resolved path. The caller does not receive an
// additional reference.
func (f *File) Path() Path { return f.path }

// Status returns the flags the file was opened with.
func (f *File) Status() OpenFlags { return f.status }

// Offset returns the current file offset.
func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// SetOffset sets the current file offset.
func (f *File) SetOffset(off int64) {
	f.mu.Lock()
	f.offset = off
	f.mu.Unlock()
}

// Impl returns the driver-specific capability implementation.
func (f *File) Impl() any { return f.impl }

// get increments f's reference count and returns f.
func (f *File) get() *File {
	f.IncRef()
	return f
}

// put releases one reference. At zero, it releases the owned path and
// frees f (spec §4.1, "File description put").
func (f *File) put() {
	zero := f.DecRef(func() {
		klogRefWarning("file", f.path.Dentry.inode.Number)
	})
	if !zero {
		return
	}
	f.path.Put()
}
