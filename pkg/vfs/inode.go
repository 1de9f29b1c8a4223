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
	"time"

	"github.com/Caleb1994/stewieos/pkg/refs"
)

// Inode is a file object: the in-memory representation of one on-disk
// (or driver-resident) file's metadata (spec §3, "Inode").
//
// Inode is loosely analogous to Linux's struct inode, but VFS does not
// require filesystems to expose inode numbers that are stable identities
// for the file beyond the scope of a single Superblock: a Superblock's
// inode cache (see Superblock.GetInode) exists precisely so two Dentries
// naming the same underlying file (e.g. via a hard link) share one
// Inode, and thus one reference count and one cached Size/Mode/nlink
// set.
//
// Dentry -> Inode is a strong (ref-counted) edge. Inode -> Dentry (the
// dentries set below) is a weak membership edge kept only so that
// InvalidateDentry-style operations could walk back from an inode to
// its names; no reference count flows along it (spec §9, "Cyclic
// ownership").
type Inode struct {
	refs.Count

	// Number is the driver-assigned inode number, stable for the
	// lifetime of the Superblock's cache entry.
	Number uint64

	Mode  FileMode
	Uid   uint32
	Gid   uint32
	Size  int64
	Nlink uint32

	// RDev is the device major/minor pair for special files, packed as
	// (major<<8)|minor.
	RDev uint32

	Atime, Mtime, Ctime time.Time

	sb *Superblock

	mu       sync.Mutex
	dentries map[*Dentry]struct{}

	impl any
}

// Init must be called once, before the inode is handed to a driver's
// ReadInode implementation.
func (i *Inode) Init(sb *Superblock) {
	i.sb = sb
	i.dentries = make(map[*Dentry]struct{})
	i.Count.Init(1)
}

// SetImpl attaches the driver-specific capability implementation for
// this inode. A driver's ReadInode implementation calls this (typically
// with itself, or a thin per-inode wrapper) once it has resolved
// ino.Number to its own internal file-object representation.
func (i *Inode) SetImpl(impl any) { i.impl = impl }

// Impl returns the driver-specific capability implementation attached by
// SetImpl, for type-asserting to the optional interfaces in ops.go.
func (i *Inode) Impl() any { return i.impl }

// Superblock returns the owning superblock.
func (i *Inode) Superblock() *Superblock { return i.sb }

// SetSize updates the cached size, e.g. after a driver's Truncater
// capability runs.
func (i *Inode) SetSize(n int64) {
	i.mu.Lock()
	i.Size = n
	i.mu.Unlock()
}

// SetMode updates the cached mode, e.g. after a driver's ModeChanger
// capability runs. The file-type bits are the caller's responsibility;
// Chmod keeps the existing file-type bits and replaces only the
// permission bits of the mode it passes (see vfs.Chmod).
func (i *Inode) SetMode(m FileMode) {
	i.mu.Lock()
	i.Mode = m
	i.mu.Unlock()
}

// SetOwner updates the cached uid/gid, e.g. after a driver's
// OwnerChanger capability runs.
func (i *Inode) SetOwner(uid, gid uint32) {
	i.mu.Lock()
	i.Uid = uid
	i.Gid = gid
	i.mu.Unlock()
}

// SetNlink updates the cached link count, e.g. after a driver's
// HardLinker capability runs.
func (i *Inode) SetNlink(n uint32) {
	i.mu.Lock()
	i.Nlink = n
	i.mu.Unlock()
}

// addDentry and removeDentry maintain the weak reverse-lookup set.
func (i *Inode) addDentry(d *Dentry) {
	i.mu.Lock()
	i.dentries[d] = struct{}{}
	i.mu.Unlock()
}

func (i *Inode) removeDentry(d *Dentry) {
	i.mu.Lock()
	delete(i.dentries, d)
	i.mu.Unlock()
}

// get increments i's reference count and returns i.
func (i *Inode) get() *Inode {
	i.IncRef()
	return i
}

// put releases one reference. At zero, it invokes the driver's
// put_inode hook (if any), unlinks i from its superblock's inode cache,
// and frees i (spec §4.1, "Inode put").
func (i *Inode) put() {
	zero := i.DecRef(func() {
		klogRefWarning("inode", i.Number)
	})
	if !zero {
		return
	}
	if putter, ok := i.sb.driver.(InodePutter); ok {
		putter.PutInode(i)
	}
	i.sb.forgetInode(i.Number)
	i.sb.put()
}
