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

import "strings"

// splitPath divides name into its containing directory and basename,
// mirroring create_file's use of basename() in the original (spec
// §4.5): a name with no slash names an entry directly in the root.
func splitPath(name string) (dir, base string) {
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return "/", name
	}
	if idx == 0 {
		return "/", name[1:]
	}
	return name[:idx], name[idx+1:]
}
