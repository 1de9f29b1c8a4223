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
	"time"

	"github.com/mohae/deepcopy"
)

// Stat is the information returned by fstat (spec §4.5).
type Stat struct {
	Dev     uint32
	Ino     uint64
	Mode    FileMode
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint32
	Size    int64
	BlkSize uint32
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
}

// synthesizeStat builds a Stat from cached inode and superblock fields, the
// fallback path fstat takes when the file driver doesn't implement
// FileStatter (spec §4.5: "Otherwise synthesize stat from cached inode
// fields").
//
// The result is handed back across the driver/syscall boundary, so it is
// deep-copied before being returned: the cached Stat template built here
// aliases nothing the caller can still reach, keeping the inode's own
// state immune to a caller mutating the struct it got back.
func synthesizeStat(inode *Inode) *Stat {
	inode.mu.Lock()
	template := &Stat{
		Dev:     inode.sb.device,
		Ino:     inode.Number,
		Mode:    inode.Mode,
		Nlink:   inode.Nlink,
		Uid:     inode.Uid,
		Gid:     inode.Gid,
		Rdev:    inode.RDev,
		Size:    inode.Size,
		BlkSize: inode.sb.blockSize,
		Atime:   inode.Atime,
		Mtime:   inode.Mtime,
		Ctime:   inode.Ctime,
	}
	inode.mu.Unlock()
	return deepcopy.Copy(template).(*Stat)
}
