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

// createFile implements create_file (spec §4.5): split filename into
// its parent directory and basename, resolve the parent, check write
// permission on it, and delegate to the parent inode's FileCreater.
//
// Precondition (inherited from the original): the caller has already
// established that filename does not currently resolve to anything.
func (vfs *VirtualFilesystem) createFile(cwd Path, creds Credentials, filename string, mode FileMode) (Path, error) {
	dir, base := splitPath(filename)

	dirPath, err := vfs.Resolve(cwd, dir, creds)
	if err != nil {
		return Path{}, err
	}

	if err := vfs.pathAccess(dirPath, WOK, creds); err != nil {
		dirPath.Put()
		return Path{}, err
	}

	creater, ok := dirPath.Dentry.Inode().Impl().(FileCreater)
	if !ok {
		dirPath.Put()
		return Path{}, errno.EACCES
	}

	ino, err := creater.Creat(dirPath.Dentry.Inode(), base, mode)
	if err != nil {
		dirPath.Put()
		return Path{}, err
	}

	childInode, err := dirPath.Dentry.Inode().Superblock().GetInode(ino)
	if err != nil {
		dirPath.Put()
		return Path{}, err
	}

	child := newDentry(base, dirPath.Dentry, childInode)
	// The new file shares the parent directory's mount.
	newPath := Path{Dentry: child, Mount: getMount(dirPath.Mount)}
	dirPath.Put()
	return newPath, nil
}
