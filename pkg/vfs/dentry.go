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
	"github.com/Caleb1994/stewieos/pkg/refs"
)

// Dentry represents a name binding in the directory tree: the mapping
// between one path component and the Inode it currently names (spec §3,
// "Dentry").
//
// parent is an unowned back-pointer (no reference flows from child to
// parent); it is nil only for a filesystem's root dentry. inode is a
// strong reference, released by put. mountpoint is non-nil when a Mount
// is anchored at this Dentry; Mount also sets it on the mounted
// filesystem's root dentry, pointing at the Mountpoint that root was
// mounted on.
type Dentry struct {
	refs.Count

	name       string
	parent     *Dentry
	inode      *Inode
	mountpoint *Mountpoint
}

// NewRootDentry constructs a filesystem root Dentry bound to inode, for
// use by a Driver's ReadSuper when populating Superblock.SetRoot. A root
// dentry's parent is always nil (spec §3, Dentry invariants).
func NewRootDentry(inode *Inode) *Dentry {
	return newDentry("/", nil, inode)
}

// newDentry allocates a Dentry bound to inode, owning one reference on
// it. parent is nil for a filesystem root.
func newDentry(name string, parent *Dentry, inode *Inode) *Dentry {
	d := &Dentry{name: name, parent: parent, inode: inode}
	d.Count.Init(1)
	if inode != nil {
		inode.addDentry(d)
	}
	return d
}

// Name returns the dentry's path component.
func (d *Dentry) Name() string { return d.name }

// Parent returns the parent dentry, or nil at a filesystem root.
func (d *Dentry) Parent() *Dentry { return d.parent }

// Inode returns the bound inode.
func (d *Dentry) Inode() *Inode { return d.inode }

// Mountpoint returns the mountpoint anchored here, or nil.
func (d *Dentry) Mountpoint() *Mountpoint { return d.mountpoint }

// get increments d's reference count and returns d.
func (d *Dentry) get() *Dentry {
	d.IncRef()
	return d
}

// put releases one reference. At zero, it releases the child inode
// reference and drops d (spec §4.1, "Dentry put"). There is no parent
// unlink to perform: this port does not cache child Dentries by name, so
// apart from its inode's weak reverse-lookup set, which put removes it
// from, d was never registered anywhere besides the pointer the caller
// held.
func (d *Dentry) put() {
	zero := d.DecRef(func() {
		klogRefWarning("dentry", d.inode.Number)
	})
	if !zero {
		return
	}
	if d.inode != nil {
		d.inode.removeDentry(d)
		d.inode.put()
	}
}

// lookup resolves name as a direct child of d, delegating to the bound
// inode's DirLookuper capability and materializing the resulting Dentry
// against the owning Superblock's inode cache.
//
// The spec's Inode vtable table (§3) does not name a lookup slot
// explicitly; original_source/kernel/src/fs.c's d_lookup call sites
// imply one exists without showing dentry.h, so this port adds
// DirLookuper as the natural home for it (see DESIGN.md Open Questions).
func (d *Dentry) lookup(name string) (*Dentry, error) {
	if !d.inode.Mode.IsDir() {
		return nil, errno.ENOTDIR
	}
	looker, ok := d.inode.Impl().(DirLookuper)
	if !ok {
		return nil, errno.EACCES
	}
	ino, err := looker.Lookup(d.inode, name)
	if err != nil {
		return nil, err
	}
	child, err := d.inode.sb.GetInode(ino)
	if err != nil {
		return nil, err
	}
	return newDentry(name, d, child), nil
}
