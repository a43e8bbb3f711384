package wasifs

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/absfs/absfs"
)

// filerAdapter exposes a FileSystem as an absfs.Filer.
type filerAdapter struct {
	fsys FileSystem
}

// Ensure filerAdapter implements absfs.Filer interface at compile time
var _ absfs.Filer = (*filerAdapter)(nil)

// AbsFS returns an absfs.FileSystem view of fsys. Files opened through the
// view hold a descriptor of fsys until closed.
//
// Example:
//
//	handle, _ := wasifs.Compose(sources, bindings)
//	view := wasifs.AbsFS(handle)
//	view.Chdir("/app")
//	data, err := view.ReadFile("config.yml")
func AbsFS(fsys FileSystem) absfs.FileSystem {
	return absfs.ExtendFiler(&filerAdapter{fsys: fsys})
}

// IOFS returns a read-only io/fs view of fsys rooted at "/". The result
// implements fs.ReadDirFS, fs.ReadFileFS, fs.StatFS and fs.SubFS, and can be
// mounted into a wazero module.
func IOFS(fsys FileSystem) (fs.FS, error) {
	return absfs.FilerToFS(&filerAdapter{fsys: fsys}, "/")
}

// OpenFile implements absfs.Filer
func (a *filerAdapter) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	name = cleanPath(name)
	fd, err := a.fsys.Open(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &descriptorFile{fsys: a.fsys, fd: fd, name: name}, nil
}

// Mkdir implements absfs.Filer
func (a *filerAdapter) Mkdir(name string, perm os.FileMode) error {
	return a.fsys.Mkdir(cleanPath(name), perm)
}

// MkdirAll creates a directory along with any necessary parents.
func (a *filerAdapter) MkdirAll(name string, perm os.FileMode) error {
	return a.fsys.MkdirAll(cleanPath(name), perm)
}

// Remove implements absfs.Filer
func (a *filerAdapter) Remove(name string) error {
	return a.fsys.Remove(cleanPath(name))
}

// Rename implements absfs.Filer
func (a *filerAdapter) Rename(oldpath, newpath string) error {
	return a.fsys.Rename(cleanPath(oldpath), cleanPath(newpath))
}

// Stat implements absfs.Filer
func (a *filerAdapter) Stat(name string) (os.FileInfo, error) {
	return a.fsys.Stat(cleanPath(name))
}

// Chmod is not supported by the descriptor capability.
func (a *filerAdapter) Chmod(name string, mode os.FileMode) error {
	return &fs.PathError{Op: "chmod", Path: name, Err: absfs.ErrNotImplemented}
}

// Chtimes is not supported by the descriptor capability.
func (a *filerAdapter) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return &fs.PathError{Op: "chtimes", Path: name, Err: absfs.ErrNotImplemented}
}

// Chown is not supported by the descriptor capability.
func (a *filerAdapter) Chown(name string, uid, gid int) error {
	return &fs.PathError{Op: "chown", Path: name, Err: absfs.ErrNotImplemented}
}

// ReadDir implements absfs.Filer
func (a *filerAdapter) ReadDir(name string) ([]fs.DirEntry, error) {
	return a.fsys.ReadDir(cleanPath(name))
}

// ReadFile implements absfs.Filer
func (a *filerAdapter) ReadFile(name string) ([]byte, error) {
	return a.fsys.ReadFile(cleanPath(name))
}

// Sub implements absfs.Filer
func (a *filerAdapter) Sub(dir string) (fs.FS, error) {
	return absfs.FilerToFS(a, cleanPath(dir))
}

// descriptorFile is an absfs.File backed by a descriptor of a FileSystem.
type descriptorFile struct {
	fsys FileSystem
	fd   int
	name string

	// directory listing state
	entries []fs.DirEntry
	listed  bool
	offset  int
}

var _ absfs.File = (*descriptorFile)(nil)

func (f *descriptorFile) Name() string { return f.name }

func (f *descriptorFile) Read(p []byte) (int, error) {
	return f.fsys.Read(f.fd, p)
}

func (f *descriptorFile) Write(p []byte) (int, error) {
	return f.fsys.Write(f.fd, p)
}

func (f *descriptorFile) ReadAt(p []byte, off int64) (int, error) {
	return f.fsys.ReadAt(f.fd, p, off)
}

func (f *descriptorFile) WriteAt(p []byte, off int64) (int, error) {
	return f.fsys.WriteAt(f.fd, p, off)
}

func (f *descriptorFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *descriptorFile) Seek(offset int64, whence int) (int64, error) {
	return f.fsys.Seek(f.fd, offset, whence)
}

func (f *descriptorFile) Close() error {
	return f.fsys.Close(f.fd)
}

func (f *descriptorFile) Sync() error { return nil }

func (f *descriptorFile) Stat() (os.FileInfo, error) {
	return f.fsys.Fstat(f.fd)
}

func (f *descriptorFile) Truncate(size int64) error {
	return &fs.PathError{Op: "truncate", Path: f.name, Err: absfs.ErrNotImplemented}
}

// ReadDir reads directory entries with os.File semantics.
func (f *descriptorFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !f.listed {
		entries, err := f.fsys.ReadDir(f.name)
		if err != nil {
			return nil, err
		}
		f.entries = entries
		f.listed = true
	}

	remaining := f.entries[f.offset:]
	if n <= 0 {
		f.offset = len(f.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > len(remaining) {
		n = len(remaining)
	}
	f.offset += n
	return remaining[:n], nil
}

func (f *descriptorFile) Readdir(n int) ([]os.FileInfo, error) {
	entries, err := f.ReadDir(n)
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, ierr := entry.Info()
		if ierr != nil {
			return infos, ierr
		}
		infos = append(infos, info)
	}
	return infos, err
}

func (f *descriptorFile) Readdirnames(n int) ([]string, error) {
	entries, err := f.ReadDir(n)
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, err
}
