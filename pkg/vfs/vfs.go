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

// Package vfs implements the kernel core's virtual filesystem layer:
// the filesystem-type registry, the mount table & superblock manager,
// the path resolver, and the open-file table (spec §4.1-§4.5).
package vfs

import (
	"sync"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/klog"
	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

// VirtualFilesystem is the kernel-wide VFS singleton: the filesystem
// driver registry, the global mount table, and the VFS root (spec §9,
// "Global mutable registries"). vfs.mu guards the driver registry and
// the mount indexes: Register, Unregister and Lookup hold it for their
// whole call, and Mount and Umount hold it around their reads and
// updates of those tables. Path resolution and the file operations take
// no lock, relying on the spec's cooperative-kernel guarantee that no
// two kernel-mode sections interleave (spec §5).
type VirtualFilesystem struct {
	mu sync.Mutex

	drivers map[string]Driver

	// byDevice indexes live, device-backed mounts by device id so the
	// mount-exclusion scan (spec §4.3 step 5) is an O(log n) lookup
	// instead of the original's linear list_for_each.
	byDevice *btree.BTree
	// byDriver indexes live, device-less mounts by driver name (at most
	// one per driver, same exclusion rule).
	byDriver map[string]*Mount

	root *Dentry
}

type mountByDevice struct {
	device uint32
	mount  *Mount
}

func (a mountByDevice) Less(than btree.Item) bool {
	return a.device < than.(mountByDevice).device
}

// New constructs an empty VirtualFilesystem rooted at root. root must
// already carry one reference, which the VirtualFilesystem adopts.
func New(root *Dentry) *VirtualFilesystem {
	return &VirtualFilesystem{
		drivers:  make(map[string]Driver),
		byDevice: btree.New(8),
		byDriver: make(map[string]*Mount),
		root:     root,
	}
}

// Root returns the VFS root dentry. The caller does not receive a
// reference, and Dentry exports no method for taking one.
func (vfs *VirtualFilesystem) Root() *Dentry { return vfs.root }

// Register adds a filesystem driver to the registry (spec §4.2).
func (vfs *VirtualFilesystem) Register(d Driver) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	vfs.drivers[d.Name()] = d
	return nil
}

// Unregister removes a filesystem driver, failing with EBUSY if any
// live mount still references it (spec §4.2).
func (vfs *VirtualFilesystem) Unregister(name string) error {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	d, ok := vfs.drivers[name]
	if !ok {
		return errno.ENODEV
	}
	if _, busy := vfs.byDriver[name]; busy {
		return errno.EBUSY
	}
	busy := false
	vfs.byDevice.Ascend(func(item btree.Item) bool {
		if item.(mountByDevice).mount.driverName == name {
			busy = true
			return false
		}
		return true
	})
	if busy {
		return errno.EBUSY
	}
	delete(vfs.drivers, d.Name())
	return nil
}

// Lookup finds a registered driver by name (spec §4.2).
func (vfs *VirtualFilesystem) Lookup(name string) (Driver, error) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	d, ok := vfs.drivers[name]
	if !ok {
		return nil, errno.ENODEV
	}
	return d, nil
}

// Mount implements sys_mount (spec §4.3). target and, if non-empty,
// source are paths resolved against cwd. data is the driver-specific
// mount data blob, unparsed.
func (vfs *VirtualFilesystem) Mount(cwd Path, source, target, fstype string, flags MountFlags, data string, creds Credentials) error {
	targetPath, err := vfs.Resolve(cwd, target, creds)
	if err != nil {
		return err
	}

	var sourcePath Path
	haveSource := false
	if source != "" {
		sourcePath, err = vfs.Resolve(cwd, source, creds)
		if err == nil {
			haveSource = true
		}
	}

	vfs.mu.Lock()
	driver, ok := vfs.drivers[fstype]
	vfs.mu.Unlock()
	if !ok {
		targetPath.Put()
		if haveSource {
			sourcePath.Put()
		}
		return errno.ENODEV
	}

	noDevice := driver.Flags()&FSNoDevice != 0
	if !haveSource && !noDevice {
		targetPath.Put()
		return errno.ENOENT
	}

	var device uint32
	if !noDevice {
		device = sourcePath.Dentry.Inode().RDev
		sourcePath.Put()
	} else if haveSource {
		sourcePath.Put()
	}

	vfs.mu.Lock()
	if device != 0 {
		if existing := vfs.byDevice.Get(mountByDevice{device: device}); existing != nil {
			vfs.mu.Unlock()
			targetPath.Put()
			return errno.EBUSY
		}
	} else {
		if _, busy := vfs.byDriver[driver.Name()]; busy {
			vfs.mu.Unlock()
			targetPath.Put()
			return errno.EBUSY
		}
	}
	vfs.mu.Unlock()

	if flags&MSRDONLY == 0 && driver.Flags()&FSReadOnly != 0 {
		targetPath.Put()
		return errno.EACCES
	}

	sb := newSuperblock(driver, device, flags)
	if err := driver.ReadSuper(sb, device, flags, data); err != nil {
		targetPath.Put()
		return err
	}

	root := sb.Root()
	mp := targetPath.Dentry.mountpoint
	if mp == nil {
		mp = newMountpoint(targetPath.Dentry)
		targetPath.Dentry.mountpoint = mp
	}
	root.mountpoint = mp

	m := &Mount{
		sb:         sb,
		flags:      flags,
		data:       data,
		point:      mp,
		device:     device,
		driverName: driver.Name(),
	}
	m.Count.Init(1)

	vfs.mu.Lock()
	mp.push(m)
	if device != 0 {
		vfs.byDevice.ReplaceOrInsert(mountByDevice{device: device, mount: m})
	} else {
		vfs.byDriver[driver.Name()] = m
	}
	vfs.mu.Unlock()

	targetPath.Put()

	klog.Notice("mounted filesystem", logrus.Fields{
		"fstype": fstype,
		"device": device,
	})
	return nil
}

// Umount implements sys_umount (spec §4.3).
func (vfs *VirtualFilesystem) Umount(cwd Path, target string, creds Credentials) error {
	targetPath, err := vfs.Resolve(cwd, target, creds)
	if err != nil {
		return err
	}

	if targetPath.Mount == nil || targetPath.Dentry != targetPath.Mount.Root() {
		targetPath.Put()
		return errno.EINVAL
	}

	m := targetPath.Mount
	sb := m.sb
	mp := m.point
	targetPath.Put()

	if m.Load() != 1 {
		return errno.EBUSY
	}
	if sb.Load() != 1 {
		return errno.EBUSY
	}

	if err := sb.driver.PutSuper(sb); err != nil {
		return err
	}

	vfs.mu.Lock()
	empty := mp.pop(m)
	if m.device != 0 {
		vfs.byDevice.Delete(mountByDevice{device: m.device})
	} else {
		delete(vfs.byDriver, m.driverName)
	}
	if empty {
		mp.host.mountpoint = nil
		mp.host.put()
	}
	vfs.mu.Unlock()

	klog.Notice("unmounted filesystem", logrus.Fields{
		"device": m.device,
	})
	return nil
}
