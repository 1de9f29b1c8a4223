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

package vfs_test

import (
	"testing"

	"github.com/Caleb1994/stewieos/pkg/errno"
	"github.com/Caleb1994/stewieos/pkg/vfs"
	"github.com/Caleb1994/stewieos/pkg/vfs/memfs"
)

// bootFS mounts a fresh testfs at the VFS root and returns a Path the
// caller owns. Mirrors spec §8 scenario 1, "Boot filesystem".
func bootFS(t *testing.T) (*vfs.VirtualFilesystem, vfs.Path) {
	t.Helper()
	fs := vfs.NewBootstrapRoot()
	if err := fs.Register(memfs.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	root := vfs.Path{Dentry: fs.Root()}
	if err := fs.Mount(root, "", "/", memfs.Name, 0, "", vfs.RootCredentials); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cwd, err := fs.Resolve(root, "/", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve /: %v", err)
	}
	return fs, cwd
}

func TestBootFilesystem(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	if !cwd.Dentry.Inode().Mode.IsDir() {
		t.Fatalf("root inode is not a directory")
	}
	if cwd.Mount == nil || cwd.Dentry != cwd.Mount.Root() || cwd.Dentry == fs.Root() {
		t.Fatalf("resolving \"/\" did not cross into the mounted testfs root dentry")
	}
}

func TestOpenCloseRoundTrip(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "hello.txt", vfs.OCREAT|vfs.ORDWR, 0o644)
	if err != nil {
		t.Fatalf("Open O_CREAT: %v", err)
	}

	want := []byte("hello, kernel")
	n, err := table.Write(fd, want)
	if err != nil || n != len(want) {
		t.Fatalf("Write = %d, %v, want %d, nil", n, err, len(want))
	}

	if _, err := table.Lseek(fd, 0, vfs.SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	got := make([]byte, len(want))
	n, err = table.Read(fd, got)
	if err != nil || n != len(want) {
		t.Fatalf("Read = %d, %v, want %d, nil", n, err, len(want))
	}
	if string(got) != string(want) {
		t.Fatalf("Read content = %q, want %q", got, want)
	}

	if err := table.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := table.Close(fd); err != errno.EBADF {
		t.Fatalf("double Close = %v, want EBADF", err)
	}
}

func TestOpenExistingWithoutCreatDoesNotClobber(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.OWRONLY, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := table.Write(fd, []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := table.Close(fd); err != nil {
		t.Fatalf("close: %v", err)
	}

	fd2, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	buf := make([]byte, 3)
	if n, err := table.Read(fd2, buf); err != nil || n != 3 || string(buf) != "abc" {
		t.Fatalf("reopen read = %d %q %v, want 3 \"abc\" nil", n, buf, err)
	}
	table.Close(fd2)
}

func TestOpenExclOnExistingFails(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	if _, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.OEXCL, 0o644); err != errno.EEXIST {
		t.Fatalf("O_EXCL reopen = %v, want EEXIST", err)
	}
}

func TestOpenDirectoryForWriteFails(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	if _, err := table.Open(fs, cwd, vfs.RootCredentials, "/", vfs.OWRONLY, 0); err != errno.EISDIR {
		t.Fatalf("open dir O_WRONLY = %v, want EISDIR", err)
	}
}

func TestEMFILEWhenTableFull(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(1)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "a", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := table.Open(fs, cwd, vfs.RootCredentials, "b", vfs.OCREAT, 0o644); err != errno.EMFILE {
		t.Fatalf("second open = %v, want EMFILE", err)
	}
	table.Close(fd)
}

func TestDupSharesOffset(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.ORDWR, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Write(fd, []byte("0123456789"))
	table.Lseek(fd, 0, vfs.SeekSet)

	dupFd, err := table.Dup(fd)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}

	buf := make([]byte, 4)
	if n, err := table.Read(fd, buf); err != nil || n != 4 {
		t.Fatalf("read via original fd: %d, %v", n, err)
	}
	// A dup'd descriptor shares the file description's offset, so
	// reading from the dup continues where the original left off.
	buf2 := make([]byte, 4)
	n, err := table.Read(dupFd, buf2)
	if err != nil || n != 4 {
		t.Fatalf("read via dup fd: %d, %v", n, err)
	}
	if string(buf2) != "4567" {
		t.Fatalf("dup read = %q, want \"4567\" (shared offset)", buf2)
	}
}

func TestAppendWriteRestoresOffset(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.ORDWR, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Write(fd, []byte("0123456789"))
	table.Close(fd)

	// A separate open of the same file with O_APPEND gets its own file
	// description (its own cached offset, starting at 0): verify the
	// save-seek-write-restore dance leaves that offset untouched by the
	// write even though the write itself lands at the file's end.
	appendFd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OAPPEND|vfs.OWRONLY, 0)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	before, _ := table.Lseek(appendFd, 0, vfs.SeekCur)
	if _, err := table.Write(appendFd, []byte("XY")); err != nil {
		t.Fatalf("append write: %v", err)
	}
	after, _ := table.Lseek(appendFd, 0, vfs.SeekCur)
	if before != after {
		t.Fatalf("append write changed cached offset: before=%d after=%d", before, after)
	}

	readFd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("open for verification read: %v", err)
	}
	got := make([]byte, 12)
	n, err := table.Read(readFd, got)
	if err != nil || n != 12 || string(got) != "0123456789XY" {
		t.Fatalf("file content = %q (%d, %v), want \"0123456789XY\"", got[:n], n, err)
	}

	table.Close(appendFd)
	table.Close(readFd)
}

func TestResolveDotDotAtRootFails(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	if _, err := fs.Resolve(cwd, "..", vfs.RootCredentials); err != errno.ENOENT {
		t.Fatalf("Resolve(\"..\") at root = %v, want ENOENT", err)
	}
}

func TestResolveTooLongNameFails(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	long := make([]byte, 1024)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := fs.Resolve(cwd, string(long), vfs.RootCredentials); err != errno.ENAMETOOLONG {
		t.Fatalf("Resolve(long) = %v, want ENAMETOOLONG", err)
	}
}

func TestAccessMatrixDeniesNonOwnerWrite(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "owned", vfs.OCREAT, 0o600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	other := vfs.Credentials{Uid: 1000, Gid: 1000}
	if _, err := table.Open(fs, cwd, other, "owned", vfs.OWRONLY, 0); err != errno.EACCES {
		t.Fatalf("non-owner write open = %v, want EACCES", err)
	}
}

func TestLinkSharesInodeAcrossNames(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "orig", vfs.OCREAT|vfs.OWRONLY, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Write(fd, []byte("shared"))
	table.Close(fd)

	if err := fs.Link(cwd, "orig", "alias", vfs.RootCredentials); err != nil {
		t.Fatalf("Link: %v", err)
	}

	fd2, err := table.Open(fs, cwd, vfs.RootCredentials, "alias", vfs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("open alias: %v", err)
	}
	buf := make([]byte, 6)
	if n, err := table.Read(fd2, buf); err != nil || string(buf[:n]) != "shared" {
		t.Fatalf("read alias = %q, %v, want \"shared\", nil", buf[:n], err)
	}
	table.Close(fd2)

	p, err := fs.Resolve(cwd, "orig", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve orig: %v", err)
	}
	if got := p.Dentry.Inode().Nlink; got != 2 {
		t.Fatalf("orig nlink = %d, want 2 after linking alias", got)
	}
	p.Put()
}

func TestLinkRejectsExistingNewName(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "a", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	table.Close(fd)
	fd, err = table.Open(fs, cwd, vfs.RootCredentials, "b", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	table.Close(fd)

	if err := fs.Link(cwd, "a", "b", vfs.RootCredentials); err != errno.EEXIST {
		t.Fatalf("Link onto existing name = %v, want EEXIST", err)
	}
}

func TestChmodChangesPermissionBitsOnly(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	if err := fs.Chmod(cwd, "f", 0o600, vfs.RootCredentials); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	p, err := fs.Resolve(cwd, "f", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mode := p.Dentry.Inode().Mode
	p.Put()
	if !mode.IsRegular() {
		t.Fatalf("chmod clobbered the file-type bits: mode = %o", mode)
	}

	other := vfs.Credentials{Uid: 1000, Gid: 1000}
	if _, err := table.Open(fs, cwd, other, "f", vfs.ORDONLY, 0); err != errno.EACCES {
		t.Fatalf("open after chmod 0600 as non-owner = %v, want EACCES", err)
	}
}

func TestChownRequiresRootOrOwner(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	other := vfs.Credentials{Uid: 1000, Gid: 1000}
	if err := fs.Chown(cwd, "f", 1000, 1000, other); err != errno.EPERM {
		t.Fatalf("Chown by non-owner = %v, want EPERM", err)
	}
	if err := fs.Chown(cwd, "f", 1000, 1000, vfs.RootCredentials); err != nil {
		t.Fatalf("Chown by root: %v", err)
	}
}

func TestMountBusyOnSecondDriverlessMount(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	// testfs is device-less, so a second mount of the same driver is
	// excluded by name rather than by device id (spec §4.3 step 5).
	if err := fs.Mount(cwd, "", "/", memfs.Name, 0, "", vfs.RootCredentials); err != errno.EBUSY {
		t.Fatalf("second mount of a device-less driver = %v, want EBUSY", err)
	}
}

func TestUmountRefusesWhileBusy(t *testing.T) {
	fs, cwd := bootFS(t)

	held, err := fs.Resolve(cwd, "/", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := fs.Umount(cwd, "/", vfs.RootCredentials); err != errno.EBUSY {
		t.Fatalf("Umount with outstanding mount ref = %v, want EBUSY", err)
	}

	held.Put()
	cwd.Put()
}

func TestIoctlReturnsEINVALWithoutCapability(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.ORDWR, 0o644)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer table.Close(fd)

	if _, err := table.Ioctl(fd, 0x1234, 0); err != errno.EINVAL {
		t.Fatalf("Ioctl without FileIOCtler = %v, want EINVAL", err)
	}
}

func TestUmaskMasksCreationMode(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	table := vfs.NewOpenFileTable(8)
	if old := table.SetUmask(0o022); old != 0 {
		t.Fatalf("SetUmask returned %o, want 0 (default umask)", old)
	}

	fd, err := table.Open(fs, cwd, vfs.RootCredentials, "f", vfs.OCREAT|vfs.OWRONLY, 0o666)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	table.Close(fd)

	p, err := fs.Resolve(cwd, "f", vfs.RootCredentials)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer p.Put()
	if got := p.Dentry.Inode().Mode & 0o777; got != 0o644 {
		t.Fatalf("created mode = %o, want 0644 (0666 &^ 0022)", got)
	}

	if old := table.SetUmask(0o077); old != 0o022 {
		t.Fatalf("SetUmask returned %o, want 022 (previous umask)", old)
	}
}

func TestPathCloneIndependentLifetime(t *testing.T) {
	fs, cwd := bootFS(t)
	defer cwd.Put()

	clone := cwd.Clone()
	clone.Put()

	// cwd must still be usable: Clone took its own reference rather
	// than sharing cwd's.
	if _, err := fs.Resolve(cwd, ".", vfs.RootCredentials); err != nil {
		t.Fatalf("Resolve after releasing clone: %v", err)
	}
}
