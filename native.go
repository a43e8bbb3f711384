package wasifs

import (
	"io/fs"
	"os"
	"time"

	"github.com/absfs/absfs"
	"github.com/spf13/afero"
)

// NativeFS exposes a host filesystem through the descriptor capability. It
// is what a Native source is usually bound to.
type NativeFS struct {
	descriptorFS
	src afero.Fs
}

var _ FileSystem = (*NativeFS)(nil)

// NewNativeFS wraps src. Paths are passed to src as slash separated absolute
// paths, so src is normally an afero.BasePathFs confining the guest to a
// host directory.
func NewNativeFS(src afero.Fs) *NativeFS {
	tree := absfs.ExtendFiler(&aferoFiler{src: src})
	return &NativeFS{descriptorFS: newDescriptorFS(tree), src: src}
}

// OSFS returns a NativeFS rooted at the host directory root. With readOnly
// set every mutation fails with a permission error.
func OSFS(root string, readOnly bool) *NativeFS {
	var src afero.Fs = afero.NewBasePathFs(afero.NewOsFs(), root)
	if readOnly {
		src = afero.NewReadOnlyFs(src)
	}
	return NewNativeFS(src)
}

// Afero returns the wrapped afero filesystem.
func (n *NativeFS) Afero() afero.Fs {
	return n.src
}

// aferoFiler adapts afero.Fs to absfs.Filer.
type aferoFiler struct {
	src afero.Fs
}

var _ absfs.Filer = (*aferoFiler)(nil)

func (a *aferoFiler) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := a.src.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return absfs.ExtendSeekable(f), nil
}

func (a *aferoFiler) Mkdir(name string, perm os.FileMode) error {
	return a.src.Mkdir(name, perm)
}

func (a *aferoFiler) MkdirAll(name string, perm os.FileMode) error {
	return a.src.MkdirAll(name, perm)
}

func (a *aferoFiler) Remove(name string) error {
	return a.src.Remove(name)
}

func (a *aferoFiler) Rename(oldpath, newpath string) error {
	return a.src.Rename(oldpath, newpath)
}

func (a *aferoFiler) Stat(name string) (os.FileInfo, error) {
	return a.src.Stat(name)
}

func (a *aferoFiler) Chmod(name string, mode os.FileMode) error {
	return a.src.Chmod(name, mode)
}

func (a *aferoFiler) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return a.src.Chtimes(name, atime, mtime)
}

func (a *aferoFiler) Chown(name string, uid, gid int) error {
	return a.src.Chown(name, uid, gid)
}

// ReadDir returns the entries of name sorted by filename.
func (a *aferoFiler) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(a.src, name)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

func (a *aferoFiler) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(a.src, name)
}

func (a *aferoFiler) Sub(dir string) (fs.FS, error) {
	return absfs.FilerToFS(a, dir)
}
