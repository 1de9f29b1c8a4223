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

package vfs_test

import (
	"sync"
	"testing"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/vfs"
)

// bareNode backs bareFS, a driver deliberately missing ModeChanger and
// OwnerChanger (unlike testfs, which implements both unconditionally):
// it exists only to exercise Chmod/Chown's direct-field-mutation
// fallback when a driver has no chmod/chown vtable slot (spec §6; see
// original_source/kernel/src/fs.c's sys_chmod/sys_chown "else" branch).
type bareNode struct {
	fs *bareFS

	mu       sync.Mutex
	mode     vfs.FileMode
	uid, gid uint32
	nlink    uint32
	children map[string]uint64
}

type bareFS struct {
	mu    sync.Mutex
	nodes map[uint64]*bareNode
	next  uint64
}

func newBareFS() *bareFS {
	fs := &bareFS{nodes: make(map[uint64]*bareNode), next: 2}
	fs.nodes[1] = &bareNode{fs: fs, mode: vfs.ModeDir | 0o755, nlink: 2, children: make(map[string]uint64)}
	return fs
}

func (fs *bareFS) Name() string                   { return "barefs" }
func (fs *bareFS) Flags() vfs.DriverFlags         { return vfs.FSNoDevice }
func (fs *bareFS) PutSuper(*vfs.Superblock) error { return nil }

func (fs *bareFS) ReadSuper(sb *vfs.Superblock, device uint32, flags vfs.MountFlags, data string) error {
	root, err := sb.GetInode(1)
	if err != nil {
		return err
	}
	sb.SetRoot(vfs.NewRootDentry(root))
	return nil
}

func (fs *bareFS) ReadInode(ino *vfs.Inode) error {
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
	n.mu.Unlock()
	ino.SetImpl(n)
	return nil
}

// Lookup implements vfs.DirLookuper.
func (n *bareNode) Lookup(dir *vfs.Inode, name string) (uint64, error) {
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

// Creat implements vfs.FileCreater. No Chmod/Chown/IOCtl method is
// defined on bareNode anywhere in this file: that absence is the point.
func (n *bareNode) Creat(dir *vfs.Inode, name string, mode vfs.FileMode) (uint64, error) {
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

	n.fs.mu.Lock()
	ino := n.fs.next
	n.fs.next++
	n.fs.nodes[ino] = &bareNode{fs: n.fs, mode: mode, uid: dir.Uid, gid: dir.Gid, nlink: 1}
	n.fs.mu.Unlock()

	n.mu.Lock()
	n.children[name] = ino
	n.mu.Unlock()
	return ino, nil
}

func bootBareFS(t *testing.T) (*vfs.VirtualFilesystem, vfs.Path) {
	t.Helper()
	fs := newBareFS()
	vfsInst := vfs.NewBootstrapRoot()
	if err := vfsInst.Register(fs); err != nil {
		t.Fatalf("Register: %v", err)
	}
	root := vfs.Path{Dentry: vfsInst.Root()}
	if err := vfsInst.Mount(root, "", "/", fs.Name(), 0, "", vfs.RootCredentials); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cwd, err := vfsInst.Resolve(root, "/", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve /: %v", err)
	}
	return vfsInst, cwd
}

func TestChmodFallsBackWithoutModeChanger(t *testing.T) {
	fs, cwd := bootBareFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	if err := fs.Chmod(cwd, "f", 0o600, vfs.RootCredentials); err != nil {
		t.Fatalf("Chmod without ModeChanger = %v, want nil (fallback)", err)
	}

	p, err := fs.Resolve(cwd, "f", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer p.Put()
	if got := p.Dentry.Inode().Mode & 0o7777; got != 0o600 {
		t.Fatalf("mode after fallback chmod = %o, want 0600", got)
	}
	if !p.Dentry.Inode().Mode.IsRegular() {
		t.Fatalf("fallback chmod clobbered the file-type bits")
	}
}

func TestChownFallsBackWithoutOwnerChanger(t *testing.T) {
	fs, cwd := bootBareFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	if err := fs.Chown(cwd, "f", 1000, 1000, vfs.RootCredentials); err != nil {
		t.Fatalf("Chown without OwnerChanger = %v, want nil (fallback)", err)
	}

	p, err := fs.Resolve(cwd, "f", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer p.Put()
	if p.Dentry.Inode().Uid != 1000 || p.Dentry.Inode().Gid != 1000 {
		t.Fatalf("owner after fallback chown = %d:%d, want 1000:1000", p.Dentry.Inode().Uid, p.Dentry.Inode().Gid)
	}
}
