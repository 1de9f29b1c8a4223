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
	"strings"

	"github.com/Caleb1994/stewieos/pkg/errno"
)

// maxPathLen is the resolver's single fixed-size internal path buffer
// limit (spec §4.4): "names longer than the limit fail with
// ENAMETOOLONG". The original uses a 512-byte C buffer; Go has no
// analogous stack-buffer concern, but the cap is kept as a semantic
// bound on path length, not an implementation artifact.
const maxPathLen = 511

// Resolve implements path_lookup (spec §4.4): absolute paths start at
// the VFS root, relative paths start at a clone of cwd. The returned
// Path is owned by the caller and must be released with Path.Put.
func (vfs *VirtualFilesystem) Resolve(cwd Path, name string, creds Credentials) (Path, error) {
	if len(name) > maxPathLen {
		return Path{}, errno.ENAMETOOLONG
	}

	var path Path
	var rest string
	if strings.HasPrefix(name, "/") {
		path = Path{Dentry: vfs.root.get()}
		rest = name[1:]
	} else {
		path = cwd.Clone()
		rest = name
	}

	for {
		// Step 1: mount crossing. If the current dentry is a
		// mountpoint and the active mount's root isn't already the
		// current dentry, swap the path to the mount's root.
		if path.Dentry.mountpoint != nil {
			active := path.Dentry.mountpoint.active()
			if active != nil && active.Root() != path.Dentry {
				newDentry := active.Root().get()
				newMount := active.get()
				path.Put()
				path = Path{Dentry: newDentry, Mount: newMount}
			}
		}

		// Step 2/3: dot handling and empty/terminal input.
		if rest == "" {
			return path, nil
		}
		if rest == "." {
			return path, nil
		}
		if strings.HasPrefix(rest, "./") {
			rest = rest[2:]
			continue
		}
		if rest == ".." {
			parent := path.Dentry.parent
			if parent == nil {
				path.Put()
				return Path{}, errno.ENOENT
			}
			newDentry := parent.get()
			path.Dentry.put()
			path.Dentry = newDentry
			return path, nil
		}
		if strings.HasPrefix(rest, "../") {
			parent := path.Dentry.parent
			if parent == nil {
				path.Put()
				return Path{}, errno.ENOENT
			}
			newDentry := parent.get()
			path.Dentry.put()
			path.Dentry = newDentry
			rest = rest[3:]
			continue
		}

		// Step 4: search permission.
		if err := vfs.pathAccess(path, XOK, creds); err != nil {
			path.Put()
			return Path{}, err
		}

		// Step 5/6: component extraction and descent.
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			child, err := path.Dentry.lookup(rest)
			path.Dentry.put()
			path.Dentry = nil
			if err != nil {
				if path.Mount != nil {
					path.Mount.put()
				}
				return Path{}, err
			}
			path.Dentry = child
			return path, nil
		}

		component := rest[:slash]
		child, err := path.Dentry.lookup(component)
		if err != nil {
			path.Put()
			return Path{}, err
		}
		path.Dentry.put()
		path.Dentry = child
		rest = rest[slash+1:]
	}
}
