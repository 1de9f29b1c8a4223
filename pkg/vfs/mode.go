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

// FileMode mirrors POSIX mode_t: the low 12 bits are permission and
// set-id bits, the high bits are the file-type field (S_IFMT).
type FileMode uint32

const (
	ModeTypeMask FileMode = 0170000
	ModeDir      FileMode = 0040000
	ModeRegular  FileMode = 0100000
	ModeCharDev  FileMode = 0020000
	ModeBlockDev FileMode = 0060000
	ModeFIFO     FileMode = 0010000
	ModeSocket   FileMode = 0140000
	ModeSymlink  FileMode = 0120000

	ModeUserRead   FileMode = 0400
	ModeUserWrite  FileMode = 0200
	ModeUserExec   FileMode = 0100
	ModeGroupRead  FileMode = 0040
	ModeGroupWrite FileMode = 0020
	ModeGroupExec  FileMode = 0010
	ModeOtherRead  FileMode = 0004
	ModeOtherWrite FileMode = 0002
	ModeOtherExec  FileMode = 0001
)

// IsDir reports whether m names a directory.
func (m FileMode) IsDir() bool { return m&ModeTypeMask == ModeDir }

// IsRegular reports whether m names a regular file.
func (m FileMode) IsRegular() bool { return m&ModeTypeMask == ModeRegular }

// AccessMode is the request bitmask passed to path_access (spec §4.5):
// F_OK, R_OK, W_OK, X_OK.
type AccessMode int

const (
	FOK AccessMode = 0
	XOK AccessMode = 1 << 0
	WOK AccessMode = 1 << 1
	ROK AccessMode = 1 << 2
)

// OpenFlags mirrors the POSIX open(2) flags honored by this kernel core
// (spec §6): the access-mode pair occupies the low bits the same way
// _FREAD/_FWRITE do in the original after the "+1" trick, plus the
// creation/behavior flags.
type OpenFlags uint32

const (
	ORDONLY OpenFlags = 0
	OWRONLY OpenFlags = 1
	ORDWR   OpenFlags = 2

	OCREAT  OpenFlags = 1 << 6
	OEXCL   OpenFlags = 1 << 7
	OTRUNC  OpenFlags = 1 << 9
	OAPPEND OpenFlags = 1 << 10
)

// readable and writable replicate the original's "(flags+1) & _FREAD/_FWRITE"
// trick: ORDONLY(0)+1=1 has only the read bit, OWRONLY(1)+1=2 has only
// the write bit, ORDWR(2)+1=3 has both.
func (f OpenFlags) readable() bool {
	return (uint32(f)+1)&uint32(1) != 0
}

func (f OpenFlags) writable() bool {
	return (uint32(f)+1)&uint32(2) != 0
}

// MountFlags mirrors the MS_* flags honored directly by the VFS layer
// (spec §6); unrecognized bits are passed through to the driver
// verbatim in the flags argument of its ReadSuper.
type MountFlags uint32

const (
	MSRDONLY MountFlags = 1 << 0
	MSNOEXEC MountFlags = 1 << 1
)

// DriverFlags describes static properties of a registered filesystem
// driver (spec §4.2/§4.3).
type DriverFlags uint32

const (
	// FSReadOnly marks a driver that can never be mounted read/write.
	FSReadOnly DriverFlags = 1 << 0
	// FSNoDevice marks a driver that does not require a source device
	// (e.g. an in-memory filesystem).
	FSNoDevice DriverFlags = 1 << 1
)

// SeekWhence mirrors lseek(2)'s whence argument.
type SeekWhence int

const (
	SeekSet SeekWhence = 0
	SeekCur SeekWhence = 1
	SeekEnd SeekWhence = 2
)
