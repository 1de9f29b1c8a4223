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

// Credentials is the subset of task state path_access needs: the
// calling task's uid/gid (spec §4.5). The task/scheduler subsystem that
// owns the "current task" pointer is out of this core's scope (spec
// §1); rather than read a package-level "current task" the way the C
// original does, callers pass Credentials explicitly, keeping this
// package free of global mutable state its callers don't control.
type Credentials struct {
	Uid uint32
	Gid uint32
}

// RootCredentials is uid 0, which always passes every access check
// (spec §4.5, "root (uid 0) always passes").
var RootCredentials = Credentials{Uid: 0, Gid: 0}

// pathAccess implements path_access (spec §4.5): for each requested
// mode bit, check the mount's policy flags (read-only/no-exec) and then
// the matching owner/group/other permission bit on the resolved
// dentry's inode, in the same user -> group -> other fallthrough order
// as the original.
func (vfs *VirtualFilesystem) pathAccess(path Path, mode AccessMode, creds Credentials) error {
	if mode != FOK && mode&^(XOK|WOK|ROK) != 0 {
		return errno.EINVAL
	}
	if creds.Uid == 0 {
		return nil
	}
	if mode == FOK {
		return nil
	}

	inode := path.Dentry.Inode()

	if mode&WOK != 0 {
		if path.Mount != nil && path.Mount.Flags()&MSRDONLY != 0 {
			return errno.EACCES
		}
		if !checkBit(inode, creds, ModeUserWrite, ModeGroupWrite, ModeOtherWrite) {
			return errno.EACCES
		}
	}
	if mode&ROK != 0 {
		if !checkBit(inode, creds, ModeUserRead, ModeGroupRead, ModeOtherRead) {
			return errno.EACCES
		}
	}
	if mode&XOK != 0 {
		if path.Mount != nil && path.Mount.Flags()&MSNOEXEC != 0 {
			return errno.EACCES
		}
		if !checkBit(inode, creds, ModeUserExec, ModeGroupExec, ModeOtherExec) {
			return errno.EACCES
		}
	}
	return nil
}

// PathAccess is the exported form, usable once a Path has already been
// resolved (e.g. by sys_access).
func (vfs *VirtualFilesystem) PathAccess(path Path, mode AccessMode, creds Credentials) error {
	return vfs.pathAccess(path, mode, creds)
}

func checkBit(inode *Inode, creds Credentials, userBit, groupBit, otherBit FileMode) bool {
	switch {
	case creds.Uid == inode.Uid:
		return inode.Mode&userBit != 0
	case creds.Gid == inode.Gid:
		return inode.Mode&groupBit != 0
	default:
		return inode.Mode&otherBit != 0
	}
}
