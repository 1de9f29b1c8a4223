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

package mm

import "fmt"

// Fake is an in-process stand-in for a page directory, for tests that
// drive execve without real hardware underneath: a flat byte buffer
// addressed by a fixed virtual base, exactly enough fidelity to assert
// the argument-block layout byte-exactly (spec §8, "Exec argument
// round-trip").
type Fake struct {
	base    uintptr
	mem     []byte
	stack   uintptr
	stripped bool
}

// NewFake allocates a fake address space spanning [base, base+size),
// with its stack growing down from stackTop.
func NewFake(base uintptr, size int, stackTop uintptr) *Fake {
	return &Fake{base: base, mem: make([]byte, size), stack: stackTop}
}

func (f *Fake) offset(addr uintptr, n int) (int, error) {
	if addr < f.base || addr+uintptr(n) > f.base+uintptr(len(f.mem)) {
		return 0, fmt.Errorf("mm: address range [0x%x, 0x%x) out of bounds", addr, addr+uintptr(n))
	}
	return int(addr - f.base), nil
}

// StripUserMappings implements MemoryManager.
func (f *Fake) StripUserMappings() error {
	for i := range f.mem {
		f.mem[i] = 0
	}
	f.stripped = true
	return nil
}

// MapStackPages implements MemoryManager. The fake has no page
// granularity; it only validates the range lies within the address
// space.
func (f *Fake) MapStackPages(low, high uintptr) error {
	if high <= low {
		return fmt.Errorf("mm: empty stack range")
	}
	_, err := f.offset(low, int(high-low))
	return err
}

// WriteUserMemory implements MemoryManager.
func (f *Fake) WriteUserMemory(addr uintptr, data []byte) error {
	off, err := f.offset(addr, len(data))
	if err != nil {
		return err
	}
	copy(f.mem[off:], data)
	return nil
}

// MapSegment implements MemoryManager. writable/executable are
// recorded for nothing beyond bounds-checking; the fake has no page
// protection bits to enforce.
func (f *Fake) MapSegment(addr uintptr, data []byte, writable, executable bool) error {
	return f.WriteUserMemory(addr, data)
}

// StackTop implements MemoryManager.
func (f *Fake) StackTop() uintptr { return f.stack }

// ReadUserMemory is a test-only accessor with no MemoryManager
// counterpart: production code never reads back through this
// interface, but assertions need to.
func (f *Fake) ReadUserMemory(addr uintptr, n int) ([]byte, error) {
	off, err := f.offset(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, f.mem[off:off+n])
	return out, nil
}

// Stripped reports whether StripUserMappings has been called.
func (f *Fake) Stripped() bool { return f.stripped }
