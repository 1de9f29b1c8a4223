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

// This file collects the driver-facing "vtables" of spec §6 as Go
// interfaces. Per spec §9 ("Dynamic dispatch"), an implementation may
// express optional vtable slots either as a single method-table struct
// with nil function pointers, or as a set of single-method capability
// interfaces checked with a type assertion. This port takes the latter:
// it reads the most naturally in Go and is exactly how the standard
// library itself expresses optional behavior (io.ReaderAt, io.WriterTo,
// etc.). A driver that doesn't implement a capability interface gets the
// fallback or error documented in spec §6 for that vtable slot.

// Driver is a registered filesystem type (spec §4.2, "Filesystem
// driver"). It is the only non-optional vtable in this core: every
// driver must be able to read and release a superblock.
type Driver interface {
	// Name is the driver's registry key, e.g. "testfs".
	Name() string
	// Flags returns this driver's static properties.
	Flags() DriverFlags
	// ReadSuper populates sb for a newly allocated mount. device is 0
	// for FSNoDevice drivers. data is the mount(2) data blob, unparsed.
	ReadSuper(sb *Superblock, device uint32, flags MountFlags, data string) error
	// PutSuper releases any driver-private state attached to sb. Called
	// only when umount has already verified sb's refcount is exactly 1.
	PutSuper(sb *Superblock) error
}

// InodeReader is the Superblock vtable's read_inode slot (spec §6):
// fills in ino's fields given ino.Number, which the caller has already
// set. Every driver in this repository implements it. For a driver that
// does not, GetInode skips the call and caches the inode with every
// field except Number left at its zero value.
type InodeReader interface {
	ReadInode(ino *Inode) error
}

// InodePutter is the Superblock vtable's put_inode slot. Optional;
// absence means the driver has no per-inode teardown to do.
type InodePutter interface {
	PutInode(ino *Inode)
}

// DirLookuper is the directory-lookup capability backing d_lookup
// (spec §4.4 step 5/6). The spec's Inode vtable table doesn't name this
// slot explicitly (it lists creat/link/truncate/chmod/chown only); see
// DESIGN.md's Open Question log for why this port adds it as an Inode
// capability rather than inventing a separate dentry-cache layer.
type DirLookuper interface {
	Lookup(dir *Inode, name string) (ino uint64, err error)
}

// FileCreater is the Inode vtable's creat slot, invoked by create_file
// (spec §4.5) when O_CREAT needs to materialize a new regular file in a
// directory.
type FileCreater interface {
	Creat(dir *Inode, name string, mode FileMode) (ino uint64, err error)
}

// HardLinker is the Inode vtable's link slot (spec §4.5, sys_link).
type HardLinker interface {
	Link(dir *Inode, name string, target *Inode) error
}

// Truncater is the Inode vtable's truncate slot.
type Truncater interface {
	Truncate(ino *Inode) error
}

// ModeChanger is the Inode vtable's chmod slot. Optional: absent, Chmod
// falls back to updating the cached mode bits directly (spec §6; see
// original_source/kernel/src/fs.c's sys_chmod, which does the same when
// i_ops->chmod is unset).
type ModeChanger interface {
	Chmod(ino *Inode, mode FileMode) error
}

// OwnerChanger is the Inode vtable's chown slot. Optional: absent, Chown
// falls back to updating the cached uid/gid directly, mirroring
// ModeChanger's fallback.
type OwnerChanger interface {
	Chown(ino *Inode, uid, gid uint32) error
}

// FileOpener is the File vtable's open slot (spec §6).
type FileOpener interface {
	Open(f *File, flags OpenFlags) error
}

// FileCloser is the File vtable's close slot. Named to avoid colliding
// with io.Closer's signature, which does not match close's
// file-taking contract here.
type FileCloser interface {
	CloseFile(f *File) error
}

// FileReader is the File vtable's read slot.
type FileReader interface {
	ReadFile(f *File, buf []byte) (int, error)
}

// FileWriter is the File vtable's write slot.
type FileWriter interface {
	WriteFile(f *File, buf []byte) (int, error)
}

// FileSeeker is the File vtable's lseek slot. Optional: absent, lseek
// mutates the cached offset itself (spec §4.5).
type FileSeeker interface {
	SeekFile(f *File, offset int64, whence SeekWhence) (int64, error)
}

// FileStatter is the File vtable's fstat slot. Optional: absent, fstat
// synthesizes a Stat from cached inode fields (spec §4.5).
type FileStatter interface {
	StatFile(f *File) (*Stat, error)
}

// FileIOCtler is the File vtable's ioctl slot.
type FileIOCtler interface {
	IOCtl(f *File, req uintptr, arg uintptr) (uintptr, error)
}
