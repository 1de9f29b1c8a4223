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

// Path is a transient (dentry, mount) tuple naming a live location (spec
// §3, "Path"). Both members are reference-counted by the caller; a Path
// value is always owned exclusively by whoever holds it; to share one,
// Clone it (mirroring the original's path_copy, which explicitly
// disclaims any "path_get": "you should copy the contents, not the
// pointer to it").
//
// Mount may be nil: path resolution only swaps in a non-nil Mount when
// crossing a mount boundary (spec §4.4 step 1); a path that never
// crosses one stays anchored to the implicit root mount.
type Path struct {
	Dentry *Dentry
	Mount  *Mount
}

// Clone returns a new Path referencing the same (dentry, mount),
// incrementing both reference counts (spec §4, path_copy).
func (p Path) Clone() Path {
	var out Path
	if p.Dentry != nil {
		out.Dentry = p.Dentry.get()
	}
	if p.Mount != nil {
		out.Mount = p.Mount.get()
	}
	return out
}

// Put releases both references held by p. After Put, neither member may
// be dereferenced (spec §8, "No use-after-free").
func (p Path) Put() {
	if p.Dentry != nil {
		p.Dentry.put()
	}
	if p.Mount != nil {
		p.Mount.put()
	}
}
