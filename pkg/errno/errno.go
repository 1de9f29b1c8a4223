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

// Package errno defines the kernel-core error taxonomy as preallocated
// error values, the same way gVisor's linuxerr package turns POSIX errno
// numbers into comparable sentinels instead of formatted strings.
//
// Every public kernel operation in this module returns a plain Go error
// that either is nil, one of the sentinels below (compare with ==, or
// errors.Is), or wraps one via fmt.Errorf("%w", ...). There is no
// IS_ERR/PTR_ERR convention: Go's (value, error) return already carries
// the same information without overloading the pointer's range.
package errno

import (
	"golang.org/x/sys/unix"
)

// Errno is a kernel error: an errno number surfaced to a syscall-style
// boundary. Its Error() string matches the traditional errno mnemonic so
// that log lines and test failures read the way they would in dmesg.
type Errno struct {
	name string
	unix.Errno
}

func (e Errno) Error() string {
	return e.name
}

// Is reports whether target is the same Errno, so that errors.Is works
// across values wrapped with fmt.Errorf("%w", ...).
func (e Errno) Is(target error) bool {
	other, ok := target.(Errno)
	if !ok {
		return false
	}
	return e.name == other.name
}

func newErrno(name string, sys unix.Errno) Errno {
	return Errno{name: name, Errno: sys}
}

// The errno taxonomy used by this kernel core (spec §6).
var (
	ENOENT      = newErrno("ENOENT", unix.ENOENT)
	ENAMETOOLONG = newErrno("ENAMETOOLONG", unix.ENAMETOOLONG)
	EACCES      = newErrno("EACCES", unix.EACCES)
	EPERM       = newErrno("EPERM", unix.EPERM)
	EBUSY       = newErrno("EBUSY", unix.EBUSY)
	EXDEV       = newErrno("EXDEV", unix.EXDEV)
	EROFS       = newErrno("EROFS", unix.EROFS)
	EISDIR      = newErrno("EISDIR", unix.EISDIR)
	ENOTDIR     = newErrno("ENOTDIR", unix.ENOTDIR)
	ENODEV      = newErrno("ENODEV", unix.ENODEV)
	ENOMEM      = newErrno("ENOMEM", unix.ENOMEM)
	EMFILE      = newErrno("EMFILE", unix.EMFILE)
	EBADF       = newErrno("EBADF", unix.EBADF)
	EINVAL      = newErrno("EINVAL", unix.EINVAL)
	EEXIST      = newErrno("EEXIST", unix.EEXIST)
	E2BIG       = newErrno("E2BIG", unix.E2BIG)
	ENOEXEC     = newErrno("ENOEXEC", unix.ENOEXEC)
	ELOOP       = newErrno("ELOOP", unix.ELOOP)
)
