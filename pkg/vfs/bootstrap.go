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

import "time"

// bootstrapDriver is a degenerate, undocumented filesystem: a single
// directory inode with no children and no capabilities beyond existing.
// It is never registered in the driver registry and never mounted
// directly by name; it exists only to give NewBootstrapRoot something
// to hand the VFS root dentry's mountpoint before any real filesystem
// is mounted at "/" (original_source/trunk/kernel/src/main.c shows
// initialize_filesystem() running before the first sys_mount call,
// implying the same bootstrap-root-then-mount-over-it shape Linux
// itself uses with rootfs).
type bootstrapDriver struct{}

func (bootstrapDriver) Name() string      { return "" }
func (bootstrapDriver) Flags() DriverFlags { return FSNoDevice }
func (bootstrapDriver) ReadSuper(sb *Superblock, device uint32, flags MountFlags, data string) error {
	return nil
}
func (bootstrapDriver) PutSuper(sb *Superblock) error { return nil }

func (bootstrapDriver) ReadInode(ino *Inode) error {
	ino.Mode = ModeDir | 0o755
	ino.Nlink = 2
	now := time.Unix(0, 0)
	ino.Atime, ino.Mtime, ino.Ctime = now, now, now
	ino.SetImpl(bootstrapDriver{})
	return nil
}

// NewBootstrapRoot constructs a VirtualFilesystem whose root dentry is
// an empty directory backed by no real driver. A real filesystem is
// expected to be mounted over "/" immediately afterward via Mount; the
// bootstrap root itself is never unmounted (no Mount refers to it, so
// Umount rejects it with EINVAL).
func NewBootstrapRoot() *VirtualFilesystem {
	sb := newSuperblock(bootstrapDriver{}, 0, 0)
	root, err := sb.GetInode(1)
	if err != nil {
		// bootstrapDriver.ReadInode never fails.
		panic(err)
	}
	sb.SetRoot(NewRootDentry(root))
	return New(sb.Root())
}
