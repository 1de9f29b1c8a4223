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
	"github.com/Caleb1994/stewieos/pkg/refs"
)

// Mountpoint is the anchor slot on a Dentry where one or more Mounts
// stack (spec §3, "Mountpoint"). The top of the stack (the
// last-pushed, i.e. last element) is the active mount seen by path
// resolution; stacking lets a later mount temporarily shadow an earlier
// one at the same location.
type Mountpoint struct {
	// host is the Dentry this Mountpoint is attached to. Deleting the
	// Mountpoint releases this reference (spec §4.3, umount).
	host *Dentry

	stack []*Mount
}

func newMountpoint(host *Dentry) *Mountpoint {
	return &Mountpoint{host: host.get()}
}

// active returns the topmost (currently effective) mount, or nil if the
// stack is empty.
func (mp *Mountpoint) active() *Mount {
	if len(mp.stack) == 0 {
		return nil
	}
	return mp.stack[len(mp.stack)-1]
}

func (mp *Mountpoint) push(m *Mount) {
	mp.stack = append(mp.stack, m)
}

// pop removes m from the stack. Reports whether the stack is now empty.
func (mp *Mountpoint) pop(m *Mount) bool {
	for i, entry := range mp.stack {
		if entry == m {
			mp.stack = append(mp.stack[:i], mp.stack[i+1:]...)
			break
		}
	}
	return len(mp.stack) == 0
}

// Mount is one live binding of a Superblock at a Mountpoint (spec §3,
// "Mount"). Its reference count starts at 1, representing the mount
// itself being live; every open file or resolved path under the mount
// adds a reference, and umount is only permitted when the count is back
// down to that initial 1 (spec §4.3).
type Mount struct {
	refs.Count

	sb    *Superblock
	flags MountFlags
	data  string
	point *Mountpoint

	// device and driverName identify this mount for the exclusion scan
	// in sys_mount (spec §4.3 step 5): device is the non-zero device id,
	// or driverName is consulted when device is 0 (a device-less
	// driver, at most one live mount per driver name).
	device     uint32
	driverName string
}

// Superblock returns the mounted superblock.
func (m *Mount) Superblock() *Superblock { return m.sb }

// Flags returns the mount flags (MS_RDONLY, MS_NOEXEC, ...).
func (m *Mount) Flags() MountFlags { return m.flags }

// Root returns the filesystem's root dentry, as seen through this mount.
func (m *Mount) Root() *Dentry { return m.sb.root }

// get increments m's reference count and returns m.
func (m *Mount) get() *Mount {
	m.IncRef()
	return m
}

// getMount is a nil-safe variant of Mount.get, for copying a Path whose
// Mount member may legitimately be nil (no mount has ever been crossed).
func getMount(m *Mount) *Mount {
	if m == nil {
		return nil
	}
	return m.get()
}

// put releases one reference. Mount teardown itself is driven by
// umount, not by put reaching zero (spec §4.1, "Mount put").
func (m *Mount) put() {
	m.DecRef(func() {
		klogRefWarning("mount", uint64(m.device))
	})
}
