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

package execformat_test

import (
	"encoding/binary"
	"testing"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/execformat"
	"github.com/Caleb1994/stewieos/pkg/execformat/flatfmt"
	"github.com/Caleb1994/stewieos/pkg/mm"
	"github.com/Caleb1994/stewieos/pkg/task"
	"github.com/Caleb1994/stewieos/pkg/vfs"
	"github.com/Caleb1994/stewieos/pkg/vfs/memfs"
)

const (
	fakeBase     = 0x08000000
	fakeSize     = 4 << 20
	fakeStackTop = fakeBase + fakeSize
)

// bootWithFile mounts testfs at "/" with the given mount flags and
// writes name's content (world-readable/executable), returning the
// VFS, a cwd the caller owns, and a task running as creds.
func bootWithFile(t *testing.T, flags vfs.MountFlags, creds vfs.Credentials, name string, content []byte) (*vfs.VirtualFilesystem, vfs.Path, *task.Task) {
	t.Helper()
	fs := vfs.NewBootstrapRoot()
	if err := fs.Register(memfs.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	root := vfs.Path{Dentry: fs.Root()}
	if err := fs.Mount(root, "", "/", memfs.Name, flags, "", vfs.RootCredentials); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cwd, err := fs.Resolve(root, "/", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve /: %v", err)
	}

	// Always create as root so non-root test credentials only have to
	// satisfy the "other" permission bits, not ownership.
	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, name, vfs.OCREAT|vfs.OWRONLY, 0o755)
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	if _, err := table.Write(fd, content); err != nil {
		t.Fatalf("write %q: %v", name, err)
	}
	if err := table.Close(fd); err != nil {
		t.Fatalf("close %q: %v", name, err)
	}

	fakeMM := mm.NewFake(fakeBase, fakeSize, fakeStackTop)
	tsk := task.New(creds, cwd.Clone(), fakeMM)
	return fs, cwd, tsk
}

// flatImage builds a well-formed flatfmt image: 16-byte header followed
// by the segment bytes.
func flatImage(entry, bssSize uint32, segment []byte) []byte {
	buf := make([]byte, 16+len(segment))
	copy(buf[0:4], flatfmt.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], entry)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(segment)))
	binary.LittleEndian.PutUint32(buf[12:16], bssSize)
	copy(buf[16:], segment)
	return buf
}

func TestExecveEntersUserModeOnRecognizedImage(t *testing.T) {
	segment := []byte{0x90, 0x90, 0x90, 0x90}
	img := flatImage(0x10, 0x100, segment)
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "prog", img)
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	if err := reg.Execve(tsk, fs, "prog", []string{"prog"}, []string{"HOME=/"}); err != nil {
		t.Fatalf("Execve: %v", err)
	}

	wantEntry := uintptr(0x08048000 + 0x10)
	if tsk.Regs.EIP != wantEntry {
		t.Fatalf("EIP = 0x%x, want 0x%x", tsk.Regs.EIP, wantEntry)
	}
	wantBSSEnd := uintptr(0x08048000 + len(segment) + 0x100)
	if tsk.DataEnd != wantBSSEnd {
		t.Fatalf("DataEnd = 0x%x, want 0x%x", tsk.DataEnd, wantBSSEnd)
	}
	if tsk.Flags&task.FlagExecve == 0 {
		t.Fatalf("FlagExecve not set after successful exec")
	}
	fake := tsk.MM.(*mm.Fake)
	if !fake.Stripped() {
		t.Fatalf("address space was never stripped")
	}
}

func TestExecveArgumentRoundTrip(t *testing.T) {
	img := flatImage(0, 0, []byte{0x90})
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "prog", img)
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	argv := []string{"prog", "-x"}
	envp := []string{"A=1"}
	if err := reg.Execve(tsk, fs, "prog", argv, envp); err != nil {
		t.Fatalf("Execve: %v", err)
	}

	fake := tsk.MM.(*mm.Fake)
	entryTrioAddr := tsk.Regs.UserESP
	trio, err := fake.ReadUserMemory(entryTrioAddr, 12)
	if err != nil {
		t.Fatalf("ReadUserMemory(entry trio): %v", err)
	}
	argc := binary.LittleEndian.Uint32(trio[0:4])
	argvAddr := uintptr(binary.LittleEndian.Uint32(trio[4:8]))
	envpAddr := uintptr(binary.LittleEndian.Uint32(trio[8:12]))
	if int(argc) != len(argv) {
		t.Fatalf("argc = %d, want %d", argc, len(argv))
	}
	if argvAddr != entryTrioAddr+12 {
		t.Fatalf("argv pointer = 0x%x, want 0x%x", argvAddr, entryTrioAddr+12)
	}

	// Walk argv's NUL-terminated pointer array and recover the strings.
	for i, want := range argv {
		ptrBytes, err := fake.ReadUserMemory(argvAddr+uintptr(4*i), 4)
		if err != nil {
			t.Fatalf("read argv[%d] pointer: %v", i, err)
		}
		strAddr := uintptr(binary.LittleEndian.Uint32(ptrBytes))
		got, err := fake.ReadUserMemory(strAddr, len(want))
		if err != nil {
			t.Fatalf("read argv[%d] string: %v", i, err)
		}
		if string(got) != want {
			t.Fatalf("argv[%d] = %q, want %q", i, got, want)
		}
	}
	termBytes, _ := fake.ReadUserMemory(argvAddr+uintptr(4*len(argv)), 4)
	if binary.LittleEndian.Uint32(termBytes) != 0 {
		t.Fatalf("argv array is not NULL-terminated")
	}

	for i, want := range envp {
		ptrBytes, err := fake.ReadUserMemory(envpAddr+uintptr(4*i), 4)
		if err != nil {
			t.Fatalf("read envp[%d] pointer: %v", i, err)
		}
		strAddr := uintptr(binary.LittleEndian.Uint32(ptrBytes))
		got, err := fake.ReadUserMemory(strAddr, len(want))
		if err != nil {
			t.Fatalf("read envp[%d] string: %v", i, err)
		}
		if string(got) != want {
			t.Fatalf("envp[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestExecveUnrecognizedFormatReturnsENOEXEC(t *testing.T) {
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "garbage", []byte("not a binary"))
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	if err := reg.Execve(tsk, fs, "garbage", nil, nil); err != errno.ENOEXEC {
		t.Fatalf("Execve(garbage) = %v, want ENOEXEC", err)
	}
}

func TestExecveDeniedOnNoExecMount(t *testing.T) {
	img := flatImage(0, 0, []byte{0x90})
	fs, cwd, tsk := bootWithFile(t, vfs.MSNOEXEC, vfs.Credentials{Uid: 1000, Gid: 1000}, "prog", img)
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	if err := reg.Execve(tsk, fs, "prog", []string{"prog"}, nil); err != errno.EACCES {
		t.Fatalf("Execve on MS_NOEXEC mount = %v, want EACCES", err)
	}
}

func TestExecveRejectsOversizedArguments(t *testing.T) {
	img := flatImage(0, 0, []byte{0x90})
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "prog", img)
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	huge := make([]byte, task.MaxArgSize)
	for i := range huge {
		huge[i] = 'a'
	}
	if err := reg.Execve(tsk, fs, "prog", []string{string(huge)}, nil); err != errno.E2BIG {
		t.Fatalf("Execve with oversized argv = %v, want E2BIG", err)
	}
}

func TestModuleLifecycle(t *testing.T) {
	img := flatImage(0, 0x40, []byte{0x01, 0x02, 0x03, 0x04})
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "mod.ko", img)
	defer cwd.Put()

	reg := execformat.NewRegistry()
	reg.Register(flatfmt.New(tsk.MM))

	if err := reg.Insmod(tsk, fs, "mod.ko"); err != nil {
		t.Fatalf("Insmod: %v", err)
	}
	if err := reg.Rmmod("nonexistent.ko"); err != errno.ENOENT {
		t.Fatalf("Rmmod(unknown) = %v, want ENOENT", err)
	}
	if err := reg.Rmmod("mod.ko"); err != nil {
		t.Fatalf("Rmmod: %v", err)
	}
	if err := reg.Rmmod("mod.ko"); err != errno.ENOENT {
		t.Fatalf("Rmmod twice = %v, want ENOENT", err)
	}
}

// refcountingLoader is a test-only ModuleLoader that hands back the
// same Module pointer it creates, so the test can hold an external
// reference on it the way a dependent module would (spec §4.6,
// rmmod's EBUSY-while-referenced rule).
type refcountingLoader struct {
	module *execformat.Module
}

func (*refcountingLoader) Name() string { return "refcounting" }

func (l *refcountingLoader) LoadModule(file *vfs.File) (*execformat.Module, bool, error) {
	l.module = &execformat.Module{Name: "held.ko", LoadAddr: 0x1000}
	return l.module, true, nil
}

func TestModuleRmmodRefusedWhileReferenced(t *testing.T) {
	fs, cwd, tsk := bootWithFile(t, 0, vfs.RootCredentials, "held.ko", []byte("anything"))
	defer cwd.Put()

	loader := &refcountingLoader{}
	reg := execformat.NewRegistry()
	reg.Register(loader)

	if err := reg.Insmod(tsk, fs, "held.ko"); err != nil {
		t.Fatalf("Insmod: %v", err)
	}

	loader.module.IncRef()
	if err := reg.Rmmod("held.ko"); err != errno.EBUSY {
		t.Fatalf("Rmmod while referenced = %v, want EBUSY", err)
	}

	loader.module.DecRef(nil)
	if err := reg.Rmmod("held.ko"); err != nil {
		t.Fatalf("Rmmod once unreferenced: %v", err)
	}
}
