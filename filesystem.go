package wasifs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"syscall"
)

// FileSystem is the synchronous, descriptor based filesystem capability a
// WASI runtime is bootstrapped with. Volumes, native mounts and unions all
// implement it, so a composed handle is indistinguishable from a single layer.
//
// Paths are virtual and slash separated. Relative paths are resolved against "/".
type FileSystem interface {
	// Open opens the named file with Go os.O_* flags and returns its descriptor.
	Open(name string, flag int, perm os.FileMode) (int, error)
	Close(fd int) error

	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	ReadAt(fd int, p []byte, off int64) (int, error)
	WriteAt(fd int, p []byte, off int64) (int, error)
	Seek(fd int, offset int64, whence int) (int64, error)
	Fstat(fd int) (os.FileInfo, error)

	Stat(name string) (os.FileInfo, error)
	Mkdir(name string, perm os.FileMode) error
	MkdirAll(name string, perm os.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Remove(name string) error
	Rename(oldname, newname string) error

	// Constants returns the numeric flag and mode bundle the runtime needs.
	Constants() Constants
}

// descriptorLister is implemented by filesystems that can report their open
// descriptors. Unions use it to carry pre-opened stdio descriptors through.
type descriptorLister interface {
	Descriptors() []int
}

// Constants is the fixed set of numeric open-flag, mode and access constants
// of the guest ABI. The values follow the Linux numbering used by wasi-libc and
// by node's fs.constants.
type Constants struct {
	O_RDONLY    int
	O_WRONLY    int
	O_RDWR      int
	O_CREAT     int
	O_EXCL      int
	O_NOCTTY    int
	O_TRUNC     int
	O_APPEND    int
	O_DIRECTORY int
	O_NOFOLLOW  int
	O_SYNC      int

	S_IFMT   int
	S_IFREG  int
	S_IFDIR  int
	S_IFCHR  int
	S_IFBLK  int
	S_IFIFO  int
	S_IFLNK  int
	S_IFSOCK int

	F_OK int
	R_OK int
	W_OK int
	X_OK int
}

// DefaultConstants is the bundle attached to every FileSystem in this package.
var DefaultConstants = Constants{
	O_RDONLY:    0,
	O_WRONLY:    1,
	O_RDWR:      2,
	O_CREAT:     0o100,
	O_EXCL:      0o200,
	O_NOCTTY:    0o400,
	O_TRUNC:     0o1000,
	O_APPEND:    0o2000,
	O_DIRECTORY: 0o200000,
	O_NOFOLLOW:  0o400000,
	O_SYNC:      0o4010000,

	S_IFMT:   0o170000,
	S_IFREG:  0o100000,
	S_IFDIR:  0o040000,
	S_IFCHR:  0o020000,
	S_IFBLK:  0o060000,
	S_IFIFO:  0o010000,
	S_IFLNK:  0o120000,
	S_IFSOCK: 0o140000,

	F_OK: 0,
	R_OK: 4,
	W_OK: 2,
	X_OK: 1,
}

// OpenFlags translates guest open flags into Go os.O_* flags.
// Flags without an os equivalent (O_DIRECTORY, O_NOFOLLOW, O_NOCTTY) are dropped.
func (c Constants) OpenFlags(guest int) int {
	var flag int
	switch guest & 3 {
	case c.O_WRONLY:
		flag = os.O_WRONLY
	case c.O_RDWR:
		flag = os.O_RDWR
	default:
		flag = os.O_RDONLY
	}
	if guest&c.O_CREAT != 0 {
		flag |= os.O_CREATE
	}
	if guest&c.O_EXCL != 0 {
		flag |= os.O_EXCL
	}
	if guest&c.O_TRUNC != 0 {
		flag |= os.O_TRUNC
	}
	if guest&c.O_APPEND != 0 {
		flag |= os.O_APPEND
	}
	if guest&c.O_SYNC == c.O_SYNC {
		flag |= os.O_SYNC
	}
	return flag
}

// Mode returns the S_IF* file type bits for info.
func (c Constants) Mode(info os.FileInfo) int {
	m := info.Mode()
	perm := int(m.Perm())
	switch {
	case m.IsDir():
		return c.S_IFDIR | perm
	case m&fs.ModeSymlink != 0:
		return c.S_IFLNK | perm
	case m&fs.ModeNamedPipe != 0:
		return c.S_IFIFO | perm
	case m&fs.ModeSocket != 0:
		return c.S_IFSOCK | perm
	case m&fs.ModeCharDevice != 0:
		return c.S_IFCHR | perm
	case m&fs.ModeDevice != 0:
		return c.S_IFBLK | perm
	}
	return c.S_IFREG | perm
}

// cleanPath normalizes a virtual path to an absolute, slash separated form.
func cleanPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return path.Clean(name)
}

// isNotExist reports whether err means the path is missing in a layer.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

func badDescriptor(op string, fd int) error {
	return &fs.PathError{Op: op, Path: "fd " + strconv.Itoa(fd), Err: syscall.EBADF}
}
