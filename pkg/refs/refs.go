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

// Package refs implements the kernel core's get/put reference-counting
// primitive (spec §4.1). Every VFS entity (superblock, mount, inode,
// dentry, file description) embeds a Count and drives its own
// entity-specific destruction policy on the transition to zero; Count
// itself only tracks the number and warns on underflow, exactly as the
// C original's mnt_put et al. do.
//
// Counts are plain (non-atomic) integers: the spec's concurrency model
// (§5) is a single uniprocessor kernel that is never preempted within a
// kernel-mode section, so there is no concurrent mutator to race with.
// An SMP extension would need to promote Count to an atomic and add
// locking around the registries that hand out references; neither is
// implemented here (see spec §9, "Non-atomic ref counts").
package refs

// Count is an embeddable non-negative reference counter. The zero value
// is a counter at zero; most entities construct it already at 1 via
// Init.
type Count struct {
	n int
}

// Init sets the counter to its starting value, typically 1 for a
// freshly allocated entity that the allocator itself is about to hand
// out a reference to.
func (c *Count) Init(n int) {
	c.n = n
}

// IncRef increments the counter.
func (c *Count) IncRef() {
	c.n++
}

// DecRef decrements the counter and reports whether it reached zero.
// Decrementing a counter already at zero is a diagnostic-only event: it
// emits a warning through onUnderflow and leaves the counter at zero,
// matching the original's "warning: mount reference count is going
// negative" behavior rather than underflowing into a negative count.
func (c *Count) DecRef(onUnderflow func()) bool {
	if c.n == 0 {
		if onUnderflow != nil {
			onUnderflow()
		}
		return false
	}
	c.n--
	return c.n == 0
}

// Load returns the current count.
func (c *Count) Load() int {
	return c.n
}
