package wasifs

import (
	"io/fs"
	"os"
	"sort"

	"go.uber.org/zap"
)

// Union layers filesystems with first-wins precedence.
//
// Path operations are tried against each layer in order. A layer that
// reports "not exist" is skipped; the first layer that services the call, or
// fails with any other error, ends the scan. When no layer services a call it
// fails with fs.ErrNotExist. Directory listings are merged across layers.
//
// The union has its own descriptor table. Descriptors a layer already has
// open when the union is built, such as the device streams 0, 1 and 2, keep
// their numbers; if two layers hold the same number the earlier layer wins.
//
// A Union adds no locking of its own. It is meant to be driven by a single
// runtime thread, like the layers it wraps.
type Union struct {
	layers    []FileSystem
	fds       *fdTable[layerFD]
	cache     *lookupCache
	constants Constants
}

// layerFD is where a union descriptor lives.
type layerFD struct {
	layer int
	fd    int
}

var _ FileSystem = (*Union)(nil)

// NewUnion creates a union over layers, highest precedence first. Nil layers
// are skipped.
func NewUnion(layers []FileSystem, opts ...Option) *Union {
	cfg := newConfig(opts)
	u := &Union{
		layers:    make([]FileSystem, 0, len(layers)),
		fds:       newFDTable[layerFD](),
		cache:     cfg.cache,
		constants: DefaultConstants,
	}
	for _, layer := range layers {
		if !isNilFS(layer) {
			u.layers = append(u.layers, layer)
		}
	}

	for i, layer := range u.layers {
		lister, ok := layer.(descriptorLister)
		if !ok {
			continue
		}
		for _, fd := range lister.Descriptors() {
			if !u.fds.insertAt(fd, layerFD{layer: i, fd: fd}) {
				cfg.logger.Debug("descriptor shadowed by earlier layer",
					zap.Int("fd", fd), zap.Int("layer", i))
			}
		}
	}

	cfg.logger.Debug("union created",
		zap.Int("layers", len(u.layers)),
		zap.Ints("descriptors", u.fds.descriptors()),
		zap.Bool("cache", u.cache.enabled),
	)
	return u
}

// Layers returns the layers in precedence order.
func (u *Union) Layers() []FileSystem {
	return append([]FileSystem(nil), u.layers...)
}

// CacheStats returns lookup cache statistics.
func (u *Union) CacheStats() CacheStats {
	return u.cache.Stats()
}

// ClearCache drops every cached lookup.
func (u *Union) ClearCache() {
	u.cache.clear()
}

// Descriptors returns the open union descriptors in ascending order.
func (u *Union) Descriptors() []int {
	return u.fds.descriptors()
}

// findLayer returns the first layer holding name along with its file info.
func (u *Union) findLayer(name string) (os.FileInfo, int, error) {
	if info, layer, found, ok := u.cache.get(name); ok {
		if !found {
			return nil, -1, notExist("stat", name)
		}
		return info, layer, nil
	}

	for i, layer := range u.layers {
		info, err := layer.Stat(name)
		if err == nil {
			u.cache.putHit(name, info, i)
			return info, i, nil
		}
		if !isNotExist(err) {
			return nil, -1, err
		}
	}

	u.cache.putMiss(name)
	return nil, -1, notExist("stat", name)
}

// firstLayer runs op against each layer until one does not report "not exist".
func (u *Union) firstLayer(opName, name string, op func(FileSystem) error) error {
	for _, layer := range u.layers {
		err := op(layer)
		if err == nil || !isNotExist(err) {
			return err
		}
	}
	return notExist(opName, name)
}

// Open implements FileSystem
func (u *Union) Open(name string, flag int, perm os.FileMode) (int, error) {
	name = cleanPath(name)

	isWrite := flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0
	if !isWrite {
		_, i, err := u.findLayer(name)
		if err != nil {
			if isNotExist(err) {
				return -1, notExist("open", name)
			}
			return -1, err
		}
		fd, err := u.layers[i].Open(name, flag, perm)
		if err != nil {
			return -1, err
		}
		return u.fds.insert(layerFD{layer: i, fd: fd}), nil
	}

	for i, layer := range u.layers {
		fd, err := layer.Open(name, flag, perm)
		if err == nil {
			u.cache.invalidate(name)
			return u.fds.insert(layerFD{layer: i, fd: fd}), nil
		}
		if !isNotExist(err) {
			return -1, err
		}
	}
	return -1, notExist("open", name)
}

// Close implements FileSystem
func (u *Union) Close(fd int) error {
	lfd, ok := u.fds.remove(fd)
	if !ok {
		return badDescriptor("close", fd)
	}
	return u.layers[lfd.layer].Close(lfd.fd)
}

// Read implements FileSystem
func (u *Union) Read(fd int, p []byte) (int, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("read", fd)
	}
	return u.layers[lfd.layer].Read(lfd.fd, p)
}

// Write implements FileSystem
func (u *Union) Write(fd int, p []byte) (int, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("write", fd)
	}
	return u.layers[lfd.layer].Write(lfd.fd, p)
}

// ReadAt implements FileSystem
func (u *Union) ReadAt(fd int, p []byte, off int64) (int, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("pread", fd)
	}
	return u.layers[lfd.layer].ReadAt(lfd.fd, p, off)
}

// WriteAt implements FileSystem
func (u *Union) WriteAt(fd int, p []byte, off int64) (int, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("pwrite", fd)
	}
	return u.layers[lfd.layer].WriteAt(lfd.fd, p, off)
}

// Seek implements FileSystem
func (u *Union) Seek(fd int, offset int64, whence int) (int64, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return 0, badDescriptor("seek", fd)
	}
	return u.layers[lfd.layer].Seek(lfd.fd, offset, whence)
}

// Fstat implements FileSystem
func (u *Union) Fstat(fd int) (os.FileInfo, error) {
	lfd, ok := u.fds.lookup(fd)
	if !ok {
		return nil, badDescriptor("fstat", fd)
	}
	return u.layers[lfd.layer].Fstat(lfd.fd)
}

// Stat implements FileSystem
func (u *Union) Stat(name string) (os.FileInfo, error) {
	info, _, err := u.findLayer(cleanPath(name))
	return info, err
}

// Mkdir implements FileSystem
func (u *Union) Mkdir(name string, perm os.FileMode) error {
	name = cleanPath(name)
	defer u.cache.invalidate(name)
	return u.firstLayer("mkdir", name, func(layer FileSystem) error {
		return layer.Mkdir(name, perm)
	})
}

// MkdirAll implements FileSystem
func (u *Union) MkdirAll(name string, perm os.FileMode) error {
	name = cleanPath(name)
	defer u.cache.invalidate(name)
	return u.firstLayer("mkdir", name, func(layer FileSystem) error {
		return layer.MkdirAll(name, perm)
	})
}

// ReadDir reads the named directory, merging entries from every layer that
// has it. An entry from an earlier layer hides same-named entries below it.
// Entries are sorted by name.
func (u *Union) ReadDir(name string) ([]fs.DirEntry, error) {
	name = cleanPath(name)

	seen := make(map[string]bool)
	var entries []fs.DirEntry
	var found bool

	for _, layer := range u.layers {
		layerEntries, err := layer.ReadDir(name)
		if err != nil {
			if isNotExist(err) {
				continue
			}
			return nil, err
		}
		found = true
		for _, entry := range layerEntries {
			if seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true
			entries = append(entries, entry)
		}
	}

	if !found {
		return nil, notExist("readdir", name)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// ReadFile reads the named file from the first layer that has it.
func (u *Union) ReadFile(name string) ([]byte, error) {
	name = cleanPath(name)
	info, i, err := u.findLayer(name)
	if err != nil {
		if isNotExist(err) {
			return nil, notExist("read", name)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return u.layers[i].ReadFile(name)
}

// WriteFile implements FileSystem
func (u *Union) WriteFile(name string, data []byte, perm os.FileMode) error {
	name = cleanPath(name)
	defer u.cache.invalidate(name)
	return u.firstLayer("write", name, func(layer FileSystem) error {
		return layer.WriteFile(name, data, perm)
	})
}

// Remove removes name from the first layer that has it. Copies in lower
// layers become visible again.
func (u *Union) Remove(name string) error {
	name = cleanPath(name)
	defer u.cache.invalidate(name)
	return u.firstLayer("remove", name, func(layer FileSystem) error {
		return layer.Remove(name)
	})
}

// Rename renames within the first layer that has oldname.
func (u *Union) Rename(oldname, newname string) error {
	oldname = cleanPath(oldname)
	newname = cleanPath(newname)
	defer u.cache.invalidate(oldname)
	defer u.cache.invalidate(newname)
	return u.firstLayer("rename", oldname, func(layer FileSystem) error {
		return layer.Rename(oldname, newname)
	})
}

// Constants implements FileSystem
func (u *Union) Constants() Constants {
	return u.constants
}
