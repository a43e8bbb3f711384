package wasifs

import (
	"io/fs"
	"os"
	"sort"

	"github.com/absfs/absfs"
)

// descriptorFS turns an absfs tree into a FileSystem by keeping a descriptor
// table of open absfs files. Volumes and native mounts are built on it.
type descriptorFS struct {
	tree absfs.FileSystem
	fds  *fdTable[absfs.File]
}

func newDescriptorFS(tree absfs.FileSystem) descriptorFS {
	return descriptorFS{tree: tree, fds: newFDTable[absfs.File]()}
}

// Open implements FileSystem
func (d *descriptorFS) Open(name string, flag int, perm os.FileMode) (int, error) {
	f, err := d.tree.OpenFile(cleanPath(name), flag, perm)
	if err != nil {
		return -1, err
	}
	return d.fds.insert(f), nil
}

// Close implements FileSystem
func (d *descriptorFS) Close(fd int) error {
	f, ok := d.fds.remove(fd)
	if !ok {
		return badDescriptor("close", fd)
	}
	return f.Close()
}

// Read implements FileSystem
func (d *descriptorFS) Read(fd int, p []byte) (int, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("read", fd)
	}
	return f.Read(p)
}

// Write implements FileSystem
func (d *descriptorFS) Write(fd int, p []byte) (int, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("write", fd)
	}
	return f.Write(p)
}

// ReadAt implements FileSystem
func (d *descriptorFS) ReadAt(fd int, p []byte, off int64) (int, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("pread", fd)
	}
	return f.ReadAt(p, off)
}

// WriteAt implements FileSystem
func (d *descriptorFS) WriteAt(fd int, p []byte, off int64) (int, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("pwrite", fd)
	}
	return f.WriteAt(p, off)
}

// Seek implements FileSystem
func (d *descriptorFS) Seek(fd int, offset int64, whence int) (int64, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("seek", fd)
	}
	return f.Seek(offset, whence)
}

// Fstat implements FileSystem
func (d *descriptorFS) Fstat(fd int) (os.FileInfo, error) {
	f, ok := d.fds.lookup(fd)
	if !ok {
		return nil, badDescriptor("fstat", fd)
	}
	return f.Stat()
}

// Stat implements FileSystem
func (d *descriptorFS) Stat(name string) (os.FileInfo, error) {
	return d.tree.Stat(cleanPath(name))
}

// Mkdir implements FileSystem
func (d *descriptorFS) Mkdir(name string, perm os.FileMode) error {
	return d.tree.Mkdir(cleanPath(name), perm)
}

// MkdirAll implements FileSystem
func (d *descriptorFS) MkdirAll(name string, perm os.FileMode) error {
	return d.tree.MkdirAll(cleanPath(name), perm)
}

// ReadDir returns the entries of name sorted by filename, without "." and "..".
func (d *descriptorFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := d.tree.ReadDir(cleanPath(name))
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, entry := range entries {
		if n := entry.Name(); n != "." && n != ".." {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// ReadFile implements FileSystem
func (d *descriptorFS) ReadFile(name string) ([]byte, error) {
	return d.tree.ReadFile(cleanPath(name))
}

// WriteFile implements FileSystem
func (d *descriptorFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return writeTreeFile(d.tree, cleanPath(name), data, perm)
}

// Remove implements FileSystem
func (d *descriptorFS) Remove(name string) error {
	return d.tree.Remove(cleanPath(name))
}

// Rename implements FileSystem
func (d *descriptorFS) Rename(oldname, newname string) error {
	return d.tree.Rename(cleanPath(oldname), cleanPath(newname))
}

// Constants implements FileSystem
func (d *descriptorFS) Constants() Constants {
	return DefaultConstants
}

// Descriptors returns the open descriptor numbers in ascending order.
func (d *descriptorFS) Descriptors() []int {
	return d.fds.descriptors()
}

// writeTreeFile creates or truncates name in tree and writes data to it.
func writeTreeFile(tree absfs.FileSystem, name string, data []byte, perm os.FileMode) error {
	f, err := tree.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
