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

// Package memfs implements "testfs": the in-memory filesystem driver
// the spec's scenario 1 ("Boot filesystem") and the original kernel's
// testfs.c exercise the VFS core with. It is the simplest possible
// device-less Driver: every file lives entirely as Go state in the
// driver, not on any backing store.
package memfs

import (
	"sync"
	"time"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/vfs"
)

// Name is the driver's registry key (spec §8 scenario 1:
// mount("", "/", "testfs", ...)).
const Name = "testfs"

// node is one file or directory living in the in-memory tree. A node
// and the vfs.Inode that wraps it are 1:1 for the node's lifetime: the
// node is installed as the Inode's capability Impl in ReadInode.
type node struct {
	fs *FS

	ino   uint64
	mode  vfs.FileMode
	uid   uint32
	gid   uint32
	nlink uint32

	mu       sync.Mutex
	data     []byte
	children map[string]uint64 // directory only: name -> child ino
}

// FS is a mountable instance of testfs. The FS value registered as the
// driver holds the file tree itself: ReadSuper reuses that tree, so a
// later mount of the same FS sees the files an earlier mount created.
//
// FS implements vfs.Driver, vfs.InodeReader, and vfs.InodePutter.
type FS struct {
	mu      sync.Mutex
	nodes   map[uint64]*node
	nextIno uint64
}

// New constructs an unmounted testfs instance.
func New() *FS {
	return &FS{nodes: make(map[uint64]*node), nextIno: 1}
}

// Name implements vfs.Driver.
func (fs *FS) Name() string { return Name }

// Flags implements vfs.Driver: testfs needs no backing device.
func (fs *FS) Flags() vfs.DriverFlags { return vfs.FSNoDevice }

// ReadSuper implements vfs.Driver: create the root directory if this FS
// has none yet (or reuse the existing one) and anchor it to sb.
func (fs *FS) ReadSuper(sb *vfs.Superblock, device uint32, flags vfs.MountFlags, data string) error {
	fs.mu.Lock()
	if _, ok := fs.nodes[1]; !ok {
		fs.nodes[1] = &node{
			fs:       fs,
			ino:      1,
			mode:     vfs.ModeDir | 0o755,
			nlink:    2,
			children: make(map[string]uint64),
		}
		if fs.nextIno <= 1 {
			fs.nextIno = 2
		}
	}
	fs.mu.Unlock()

	root, err := sb.GetInode(1)
	if err != nil {
		return err
	}
	sb.SetRoot(vfs.NewRootDentry(root))
	return nil
}

// PutSuper implements vfs.Driver. testfs keeps no per-mount resources
// beyond the Superblock itself, so there is nothing to release.
func (fs *FS) PutSuper(sb *vfs.Superblock) error {
	return nil
}

// ReadInode implements vfs.InodeReader.
func (fs *FS) ReadInode(ino *vfs.Inode) error {
	fs.mu.Lock()
	n, ok := fs.nodes[ino.Number]
	fs.mu.Unlock()
	if !ok {
		return errno.ENOENT
	}
	n.mu.Lock()
	ino.Mode = n.mode
	ino.Uid = n.uid
	ino.Gid = n.gid
	ino.Nlink = n.nlink
	ino.Size = int64(len(n.data))
	now := time.Unix(0, 0)
	ino.Atime, ino.Mtime, ino.Ctime = now, now, now
	n.mu.Unlock()
	ino.SetImpl(n)
	return nil
}

// PutInode implements vfs.InodePutter. testfs has no on-disk form to
// flush; the node simply outlives the Inode cache entry.
func (fs *FS) PutInode(ino *vfs.Inode) {}

func (fs *FS) alloc(mode vfs.FileMode, uid, gid uint32) *node {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := &node{fs: fs, ino: fs.nextIno, mode: mode, uid: uid, gid: gid, nlink: 1}
	if mode.IsDir() {
		n.children = make(map[string]uint64)
		n.nlink = 2
	}
	fs.nodes[n.ino] = n
	fs.nextIno++
	return n
}

// Lookup implements vfs.DirLookuper.
func (n *node) Lookup(dir *vfs.Inode, name string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return 0, errno.ENOTDIR
	}
	ino, ok := n.children[name]
	if !ok {
		return 0, errno.ENOENT
	}
	return ino, nil
}

// Creat implements vfs.FileCreater: create a new regular file (or
// whatever type mode names) as a child of the directory n.
func (n *node) Creat(dir *vfs.Inode, name string, mode vfs.FileMode) (uint64, error) {
	n.mu.Lock()
	if n.children == nil {
		n.mu.Unlock()
		return 0, errno.ENOTDIR
	}
	if _, exists := n.children[name]; exists {
		n.mu.Unlock()
		return 0, errno.EEXIST
	}
	n.mu.Unlock()

	child := n.fs.alloc(mode, dir.Uid, dir.Gid)

	n.mu.Lock()
	n.children[name] = child.ino
	n.mu.Unlock()
	return child.ino, nil
}

// Link implements vfs.HardLinker: bind an additional name to target
// within directory n.
func (n *node) Link(dir *vfs.Inode, name string, target *vfs.Inode) error {
	n.mu.Lock()
	if n.children == nil {
		n.mu.Unlock()
		return errno.ENOTDIR
	}
	if _, exists := n.children[name]; exists {
		n.mu.Unlock()
		return errno.EEXIST
	}
	n.children[name] = target.Number
	n.mu.Unlock()

	n.fs.mu.Lock()
	targetNode := n.fs.nodes[target.Number]
	n.fs.mu.Unlock()
	if targetNode == nil {
		return errno.ENOENT
	}
	targetNode.mu.Lock()
	targetNode.nlink++
	newNlink := targetNode.nlink
	targetNode.mu.Unlock()
	target.SetNlink(newNlink)
	return nil
}

// Truncate implements vfs.Truncater.
func (n *node) Truncate(ino *vfs.Inode) error {
	n.mu.Lock()
	n.data = nil
	n.mu.Unlock()
	ino.SetSize(0)
	return nil
}

// Chmod implements vfs.ModeChanger.
func (n *node) Chmod(ino *vfs.Inode, mode vfs.FileMode) error {
	n.mu.Lock()
	n.mode = mode
	n.mu.Unlock()
	ino.SetMode(mode)
	return nil
}

// Chown implements vfs.OwnerChanger.
func (n *node) Chown(ino *vfs.Inode, uid, gid uint32) error {
	n.mu.Lock()
	n.uid, n.gid = uid, gid
	n.mu.Unlock()
	ino.SetOwner(uid, gid)
	return nil
}

// ReadFile implements vfs.FileReader.
func (n *node) ReadFile(f *vfs.File, buf []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	off := f.Offset()
	if off >= int64(len(n.data)) {
		return 0, nil
	}
	c := copy(buf, n.data[off:])
	f.SetOffset(off + int64(c))
	return c, nil
}

// WriteFile implements vfs.FileWriter.
func (n *node) WriteFile(f *vfs.File, buf []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	off := f.Offset()
	end := off + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:end], buf)
	f.SetOffset(end)
	return len(buf), nil
}
