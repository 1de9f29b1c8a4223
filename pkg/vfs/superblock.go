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

// Superblock is the in-memory anchor of one mounted filesystem instance
// (spec §3, "Superblock"). Its reference count tracks how many inodes
// GetInode has materialized against it (the root inode's own reference,
// plus one per other inode currently open); destruction is not driven
// by the count reaching zero but by umount, which requires the count to
// already be exactly 1 (only the root inode's own reference left)
// before tearing the superblock down (spec §4.1, "Superblock put").
type Superblock struct {
	refs.Count

	driver      Driver
	device      uint32
	blockSize   uint32
	root        *Dentry
	mountFlags  MountFlags

	mu     sync.Mutex
	inodes map[uint64]*Inode
}

func newSuperblock(driver Driver, device uint32, flags MountFlags) *Superblock {
	sb := &Superblock{
		driver:    driver,
		device:    device,
		blockSize: 512,
		inodes:    make(map[uint64]*Inode),
	}
	// Starts at zero, not one: the superblock's first (and, absent any
	// other open inode, only) reference comes from the driver's
	// ReadSuper materializing the root inode through GetInode below, the
	// same way the original's super->s_refs starts at zero and only
	// becomes 1 once i_get(super, ...) builds the root inode.
	sb.Count.Init(0)
	return sb
}

// Driver returns the filesystem driver that owns this superblock.
func (sb *Superblock) Driver() Driver { return sb.driver }

// Device returns the device id this superblock was mounted against, or
// 0 for a device-less driver.
func (sb *Superblock) Device() uint32 { return sb.device }

// SetBlockSize lets a driver's ReadSuper override the default block
// size reported by fstat.
func (sb *Superblock) SetBlockSize(n uint32) { sb.blockSize = n }

// SetRoot installs the filesystem's root dentry. Must be called exactly
// once, by the driver's ReadSuper.
func (sb *Superblock) SetRoot(root *Dentry) { sb.root = root }

// Root returns the filesystem's root dentry.
func (sb *Superblock) Root() *Dentry { return sb.root }

// GetInode materializes the inode numbered ino, consulting the
// per-superblock cache first so that two Dentries naming the same file
// (e.g. across a hard link) share one Inode (spec §3, Inode lifecycle).
// On a cache miss, it allocates a new Inode, calls the driver's
// read_inode to populate it, and caches it.
func (sb *Superblock) GetInode(ino uint64) (*Inode, error) {
	sb.mu.Lock()
	if existing, ok := sb.inodes[ino]; ok {
		sb.mu.Unlock()
		return existing.get(), nil
	}
	sb.mu.Unlock()

	reader, ok := sb.driver.(InodeReader)
	inode := &Inode{Number: ino}
	inode.Init(sb)
	if ok {
		if err := reader.ReadInode(inode); err != nil {
			return nil, err
		}
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if existing, ok := sb.inodes[ino]; ok {
		// Lost a race against another lookup of the same number; keep
		// the winner (irrelevant under the cooperative-kernel model,
		// kept defensive for tests that call GetInode directly).
		return existing.get(), nil
	}
	sb.inodes[ino] = inode
	sb.get()
	return inode, nil
}

func (sb *Superblock) forgetInode(ino uint64) {
	sb.mu.Lock()
	delete(sb.inodes, ino)
	sb.mu.Unlock()
}

// get increments sb's reference count.
func (sb *Superblock) get() *Superblock {
	sb.IncRef()
	return sb
}

// put decrements sb's reference count. Unlike other entities, reaching
// zero does not free sb: teardown is driven exclusively by umount,
// which requires the count to be exactly 1 before calling the driver's
// put_super (spec §4.1, §4.3).
func (sb *Superblock) put() {
	sb.DecRef(func() {
		klogRefWarning("superblock", uint64(sb.device))
	})
}
