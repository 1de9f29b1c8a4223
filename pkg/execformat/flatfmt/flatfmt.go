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

// Package flatfmt is a minimal exec-format driver: it recognizes a
// 4-byte magic header followed by a single flat code segment loaded
// at a fixed address, standing in for the original's "elf/elf32.h"
// driver (out of scope per spec §1 — concrete executable format
// drivers are external collaborators) so execve and insmod are
// exercisable without a real ELF loader.
package flatfmt

import (
	"encoding/binary"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/execformat"
	"github.com/Caleb1994/stewieos/pkg/mm"
	"github.com/Caleb1994/stewieos/pkg/vfs"
)

// Magic is the 4-byte signature flatfmt images start with.
var Magic = [4]byte{'F', 'L', 'A', 'T'}

// loadAddr is the fixed virtual address every flatfmt image is mapped
// at. A real loader would honor a program header; this format has
// exactly one segment.
const loadAddr = 0x08048000

// header is the 16-byte image header: magic, entry offset, segment
// size, bss size.
type header struct {
	Magic    [4]byte
	Entry    uint32
	SegSize  uint32
	BSSSize  uint32
}

const headerLen = 16

// Format implements execformat.ExecLoader and execformat.ModuleLoader.
type Format struct {
	MM mm.MemoryManager
}

// New constructs a flatfmt driver writing loaded images through mm.
func New(memoryManager mm.MemoryManager) *Format {
	return &Format{MM: memoryManager}
}

// Name implements execformat.Format.
func (*Format) Name() string { return "flatfmt" }

func parseHeader(buf []byte) (header, bool) {
	var h header
	if len(buf) < headerLen {
		return h, false
	}
	if [4]byte{buf[0], buf[1], buf[2], buf[3]} != Magic {
		return h, false
	}
	h.Magic = Magic
	h.Entry = binary.LittleEndian.Uint32(buf[4:8])
	h.SegSize = binary.LittleEndian.Uint32(buf[8:12])
	h.BSSSize = binary.LittleEndian.Uint32(buf[12:16])
	return h, true
}

// CheckExec implements execformat.ExecLoader.
func (f *Format) CheckExec(ctx *execformat.ExecContext) bool {
	_, ok := parseHeader(ctx.Header[:])
	return ok
}

// LoadExec implements execformat.ExecLoader: read the whole segment
// starting after the header, map it at loadAddr, and report the entry
// point and BSS end.
func (f *Format) LoadExec(ctx *execformat.ExecContext) error {
	h, ok := parseHeader(ctx.Header[:])
	if !ok {
		return errno.ENOEXEC
	}

	reader, ok := ctx.File.Impl().(vfs.FileReader)
	if !ok {
		return errno.ENOEXEC
	}
	ctx.File.SetOffset(int64(headerLen))
	seg := make([]byte, h.SegSize)
	if _, err := reader.ReadFile(ctx.File, seg); err != nil {
		return err
	}

	if err := f.MM.MapSegment(loadAddr, seg, true, true); err != nil {
		return err
	}

	ctx.Entry = uintptr(loadAddr) + uintptr(h.Entry)
	ctx.BSSEnd = uintptr(loadAddr) + uintptr(h.SegSize) + uintptr(h.BSSSize)
	return nil
}

// LoadModule implements execformat.ModuleLoader: a flatfmt module is
// the same image shape as an executable, loaded in place rather than
// entered.
func (f *Format) LoadModule(file *vfs.File) (*execformat.Module, bool, error) {
	reader, ok := file.Impl().(vfs.FileReader)
	if !ok {
		return nil, false, nil
	}

	file.SetOffset(0)
	hdr := make([]byte, headerLen)
	if _, err := reader.ReadFile(file, hdr); err != nil {
		return nil, false, nil
	}
	h, ok := parseHeader(hdr)
	if !ok {
		return nil, false, nil
	}

	seg := make([]byte, h.SegSize)
	if _, err := reader.ReadFile(file, seg); err != nil {
		return nil, true, err
	}
	if err := f.MM.MapSegment(loadAddr, seg, true, false); err != nil {
		return nil, true, err
	}

	return &execformat.Module{
		Name:     file.Path().Dentry.Name(),
		LoadAddr: loadAddr,
	}, true, nil
}
