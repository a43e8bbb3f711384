package wasifs

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"syscall"
	"testing"
	"time"
)

// deniedVolume is a volume whose lookups fail with a permission error
type deniedVolume struct {
	*Volume
}

func (d deniedVolume) Stat(name string) (os.FileInfo, error) {
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrPermission}
}

func (d deniedVolume) ReadDir(name string) ([]fs.DirEntry, error) {
	return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrPermission}
}

// TestUnionReadThrough tests reading files from lower layers
func TestUnionReadThrough(t *testing.T) {
	top := mustNewVolume(t, nil)
	base := mustNewVolume(t, map[string]string{"/test.txt": "base content"})

	u := NewUnion([]FileSystem{top, base})

	data, err := u.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != "base content" {
		t.Errorf("expected 'base content', got '%s'", data)
	}

	fd, err := u.Open("/test.txt", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	buf := make([]byte, 4)
	if n, err := u.Read(fd, buf); err != nil || string(buf[:n]) != "base" {
		t.Errorf("expected 'base', got '%s' (%v)", buf[:n], err)
	}
	if err := u.Close(fd); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestUnionLayerPrecedence tests that the first layer holding a path wins
func TestUnionLayerPrecedence(t *testing.T) {
	l0 := mustNewVolume(t, map[string]string{"/file.txt": "layer0"})
	l1 := mustNewVolume(t, map[string]string{"/file.txt": "layer1", "/other.txt": "layer1"})
	l2 := mustNewVolume(t, map[string]string{"/file.txt": "layer2", "/other.txt": "layer2", "/base.txt": "layer2"})

	u := NewUnion([]FileSystem{l0, l1, l2})

	for name, want := range map[string]string{
		"/file.txt":  "layer0",
		"/other.txt": "layer1",
		"/base.txt":  "layer2",
	} {
		data, err := u.ReadFile(name)
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("%s: expected '%s', got '%s'", name, want, data)
		}
	}
}

// TestUnionStopsAtFirstError tests that errors other than not-exist end the scan
func TestUnionStopsAtFirstError(t *testing.T) {
	denied := deniedVolume{mustNewVolume(t, nil)}
	base := mustNewVolume(t, map[string]string{"/secret": "s"})

	u := NewUnion([]FileSystem{denied, base})

	if _, err := u.Stat("/secret"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected permission error, got %v", err)
	}
	if _, err := u.ReadDir("/"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected permission error from ReadDir, got %v", err)
	}
}

// TestUnionNotExist tests the terminal not-exist error
func TestUnionNotExist(t *testing.T) {
	u := NewUnion([]FileSystem{mustNewVolume(t, nil), mustNewVolume(t, nil)})

	if _, err := u.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected not-exist, got %v", err)
	}
	if _, err := u.Open("/missing", os.O_RDONLY, 0); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open: expected not-exist, got %v", err)
	}
	if _, err := u.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir: expected not-exist, got %v", err)
	}
	if err := u.Remove("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove: expected not-exist, got %v", err)
	}
}

// TestUnionDirectoryMerging tests that listings merge across layers
func TestUnionDirectoryMerging(t *testing.T) {
	l0 := mustNewVolume(t, map[string]string{"/dir/a.txt": "0", "/dir/shared.txt": "0"})
	l1 := mustNewVolume(t, map[string]string{"/dir/b.txt": "1", "/dir/shared.txt": "1", "/dir/sub/": ""})
	l2 := mustNewVolume(t, map[string]string{"/other/": ""})

	u := NewUnion([]FileSystem{l0, l1, l2})

	entries, err := u.ReadDir("/dir")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	want := []string{"a.txt", "b.txt", "shared.txt", "sub"}
	if got := entryNames(entries); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	root, err := u.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir(/) failed: %v", err)
	}
	if got := entryNames(root); !slices.Equal(got, []string{"dir", "other"}) {
		t.Errorf("expected [dir other], got %v", got)
	}
}

// TestUnionWriteRouting tests that writes go to the first layer that accepts the path
func TestUnionWriteRouting(t *testing.T) {
	top := mustNewVolume(t, nil)
	base := mustNewVolume(t, map[string]string{"/data/existing.txt": "old"})

	u := NewUnion([]FileSystem{top, base})

	// The top layer has the root, so new top-level files land there
	if err := u.WriteFile("/new.txt", []byte("new"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := top.Stat("/new.txt"); err != nil {
		t.Errorf("file should exist in top layer: %v", err)
	}
	if _, err := base.Stat("/new.txt"); err == nil {
		t.Error("file should not exist in base layer")
	}

	// Only the base layer has /data
	if err := u.WriteFile("/data/existing.txt", []byte("updated"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := base.ReadFile("/data/existing.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "updated" {
		t.Errorf("expected 'updated' in base layer, got '%s'", data)
	}

	fd, err := u.Open("/data/log.txt", os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := u.Write(fd, []byte("line")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	u.Close(fd)
	if data, err := base.ReadFile("/data/log.txt"); err != nil || string(data) != "line" {
		t.Errorf("expected 'line' in base layer, got '%s' (%v)", data, err)
	}
}

// TestUnionRemoveUncoversLowerLayer tests that removing the top copy exposes the next one
func TestUnionRemoveUncoversLowerLayer(t *testing.T) {
	top := mustNewVolume(t, map[string]string{"/f": "top"})
	base := mustNewVolume(t, map[string]string{"/f": "base"})

	u := NewUnion([]FileSystem{top, base})

	if err := u.Remove("/f"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	data, err := u.ReadFile("/f")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "base" {
		t.Errorf("expected 'base', got '%s'", data)
	}
}

// TestUnionMkdirAndRename tests directory creation and rename within a layer
func TestUnionMkdirAndRename(t *testing.T) {
	top := mustNewVolume(t, nil)
	base := mustNewVolume(t, map[string]string{"/srv/a.txt": "a"})

	u := NewUnion([]FileSystem{top, base})

	if err := u.MkdirAll("/tmp/work", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if info, err := top.Stat("/tmp/work"); err != nil || !info.IsDir() {
		t.Errorf("directory should be created in top layer: %v", err)
	}

	if err := u.Mkdir("/srv/sub", 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if _, err := base.Stat("/srv/sub"); err != nil {
		t.Errorf("directory should be created in base layer: %v", err)
	}

	if err := u.Rename("/srv/a.txt", "/srv/b.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := u.Stat("/srv/a.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("old name should be gone, got %v", err)
	}
	if data, err := u.ReadFile("/srv/b.txt"); err != nil || string(data) != "a" {
		t.Errorf("expected 'a', got '%s' (%v)", data, err)
	}
}

// TestUnionDescriptors tests descriptor routing and reuse
func TestUnionDescriptors(t *testing.T) {
	l0 := mustNewVolume(t, map[string]string{"/a": "from l0"})
	l1 := mustNewVolume(t, map[string]string{"/b": "from l1"})

	// Hold a descriptor in l1 so layer numbers and union numbers differ
	if _, err := l1.Open("/b", os.O_RDONLY, 0); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	u := NewUnion([]FileSystem{l0, l1})
	if got := u.Descriptors(); !slices.Equal(got, []int{3}) {
		t.Fatalf("expected adopted descriptor [3], got %v", got)
	}

	fa, err := u.Open("/a", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("Open(/a) failed: %v", err)
	}
	fb, err := u.Open("/b", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("Open(/b) failed: %v", err)
	}
	if fa != 4 || fb != 5 {
		t.Errorf("expected descriptors 4 and 5, got %d and %d", fa, fb)
	}

	buf := make([]byte, 16)
	n, _ := u.ReadAt(fb, buf, 0)
	if string(buf[:n]) != "from l1" {
		t.Errorf("expected 'from l1', got '%s'", buf[:n])
	}
	info, err := u.Fstat(fa)
	if err != nil {
		t.Fatalf("Fstat failed: %v", err)
	}
	if info.Size() != int64(len("from l0")) {
		t.Errorf("unexpected size %d", info.Size())
	}

	if err := u.Close(fa); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := u.Close(fa); !errors.Is(err, syscall.EBADF) {
		t.Errorf("expected EBADF, got %v", err)
	}
	if _, err := u.Seek(99, 0, 0); !errors.Is(err, syscall.EBADF) {
		t.Errorf("expected EBADF, got %v", err)
	}
}

// TestUnionShadowedDescriptors tests that the first layer keeps a contested number
func TestUnionShadowedDescriptors(t *testing.T) {
	first, err := NewDeviceVolume()
	if err != nil {
		t.Fatalf("NewDeviceVolume failed: %v", err)
	}
	second, err := NewDeviceVolume()
	if err != nil {
		t.Fatalf("NewDeviceVolume failed: %v", err)
	}

	u := NewUnion([]FileSystem{first, second})
	if _, err := u.Write(FdStdout, []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if data, _ := first.ReadFile(DevStdout); string(data) != "x" {
		t.Errorf("expected write in first layer, got '%s'", data)
	}
	if data, _ := second.ReadFile(DevStdout); len(data) != 0 {
		t.Errorf("second layer should be untouched, got '%s'", data)
	}
}

// TestUnionNilLayers tests that nil layers, typed or not, are dropped
func TestUnionNilLayers(t *testing.T) {
	v := mustNewVolume(t, map[string]string{"/a": "a"})
	u := NewUnion([]FileSystem{nil, v, (*Volume)(nil), (*NativeFS)(nil)})

	if got := len(u.Layers()); got != 1 {
		t.Errorf("expected 1 layer, got %d", got)
	}
	if data, err := u.ReadFile("/a"); err != nil || string(data) != "a" {
		t.Errorf("expected 'a', got '%s' (%v)", data, err)
	}
	if u.Constants() != DefaultConstants {
		t.Error("union should report the default constants")
	}
}

// TestUnionLookupCache tests caching and invalidation of layer lookups
func TestUnionLookupCache(t *testing.T) {
	top := mustNewVolume(t, nil)
	base := mustNewVolume(t, map[string]string{"/test.txt": "content"})

	u := NewUnion([]FileSystem{top, base}, WithLookupCache(5*time.Minute, 100))

	if _, err := u.Stat("/test.txt"); err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if _, err := u.Stat("/missing.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}

	stats := u.CacheStats()
	if !stats.Enabled || stats.Entries != 1 || stats.NegativeEntries != 1 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}

	// Writing through the union must drop the cached miss
	if err := u.WriteFile("/missing.txt", []byte("now here"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := u.Stat("/missing.txt"); err != nil {
		t.Errorf("Stat after write failed: %v", err)
	}

	// Writing to /test.txt in the top layer changes which layer serves it
	if err := top.WriteFile("/test.txt", []byte("override"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if data, _ := u.ReadFile("/test.txt"); string(data) != "content" {
		t.Errorf("cached lookup should still point at the base layer, got '%s'", data)
	}
	u.ClearCache()
	if data, _ := u.ReadFile("/test.txt"); string(data) != "override" {
		t.Errorf("expected 'override' after clearing the cache, got '%s'", data)
	}
}
