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
	"github.com/Caleb1994/stewieos/pkg/errno"
)

// Link implements sys_link (spec §4.5): old and newParent must resolve
// to the same mount (EXDEV otherwise), the mount must be writable
// (EROFS otherwise), and the new parent's inode must provide a
// HardLinker.
func (vfs *VirtualFilesystem) Link(cwd Path, oldName, newName string, creds Credentials) error {
	oldPath, err := vfs.Resolve(cwd, oldName, creds)
	if err != nil {
		return err
	}
	newDir, newBase := splitPath(newName)
	newParent, err := vfs.Resolve(cwd, newDir, creds)
	if err != nil {
		oldPath.Put()
		return err
	}

	if oldPath.Mount != newParent.Mount {
		oldPath.Put()
		newParent.Put()
		return errno.EXDEV
	}
	if newParent.Mount != nil && newParent.Mount.Flags()&MSRDONLY != 0 {
		oldPath.Put()
		newParent.Put()
		return errno.EROFS
	}

	linker, ok := newParent.Dentry.Inode().Impl().(HardLinker)
	if !ok {
		oldPath.Put()
		newParent.Put()
		return errno.EPERM
	}

	err = linker.Link(newParent.Dentry.Inode(), newBase, oldPath.Dentry.Inode())
	oldPath.Put()
	newParent.Put()
	return err
}

// Access implements sys_access (spec §4.5/§6).
func (vfs *VirtualFilesystem) Access(cwd Path, name string, mode AccessMode, creds Credentials) error {
	path, err := vfs.Resolve(cwd, name, creds)
	if err != nil {
		return err
	}
	err = vfs.pathAccess(path, mode, creds)
	path.Put()
	return err
}

// Chmod implements sys_chmod (spec §6). The permission bits only; the
// file-type bits of mode are ignored, matching chmod(2) semantics.
func (vfs *VirtualFilesystem) Chmod(cwd Path, name string, mode FileMode, creds Credentials) error {
	path, err := vfs.Resolve(cwd, name, creds)
	if err != nil {
		return err
	}
	defer path.Put()
	inode := path.Dentry.Inode()
	if creds.Uid != 0 && creds.Uid != inode.Uid {
		return errno.EPERM
	}
	newMode := (inode.Mode &^ 0o7777) | (mode & 0o7777)
	changer, ok := inode.Impl().(ModeChanger)
	if !ok {
		inode.SetMode(newMode)
		return nil
	}
	return changer.Chmod(inode, newMode)
}

// Chown implements sys_chown (spec §6).
func (vfs *VirtualFilesystem) Chown(cwd Path, name string, uid, gid uint32, creds Credentials) error {
	path, err := vfs.Resolve(cwd, name, creds)
	if err != nil {
		return err
	}
	defer path.Put()
	inode := path.Dentry.Inode()
	if creds.Uid != 0 && creds.Uid != inode.Uid {
		return errno.EPERM
	}
	changer, ok := inode.Impl().(OwnerChanger)
	if !ok {
		inode.SetOwner(uid, gid)
		return nil
	}
	return changer.Chown(inode, uid, gid)
}
