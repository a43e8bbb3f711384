package wasifs

import (
	"errors"
	"io"
	"io/fs"
	"slices"
	"testing"

	"github.com/absfs/absfs"
)

// TestAbsFSInterface verifies any handle can provide absfs.FileSystem
func TestAbsFSInterface(t *testing.T) {
	u := NewUnion([]FileSystem{mustNewVolume(t, nil), mustNewVolume(t, nil)})

	var _ absfs.FileSystem = AbsFS(u)

	t.Log("✓ AbsFS provides absfs.FileSystem interface")
}

// TestAbsFSView verifies the absfs view reads through the union
func TestAbsFSView(t *testing.T) {
	top := mustNewVolume(t, nil)
	base := mustNewVolume(t, map[string]string{"/etc/config.yml": "base: config"})
	u := NewUnion([]FileSystem{top, base})

	view := AbsFS(u)

	if err := view.Chdir("/etc"); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	cwd, err := view.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if cwd != "/etc" {
		t.Errorf("Expected cwd=/etc, got %s", cwd)
	}

	file, err := view.Open("config.yml")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	content, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(content) != "base: config" {
		t.Errorf("Expected 'base: config', got '%s'", content)
	}
	if file.Name() != "/etc/config.yml" {
		t.Errorf("unexpected name %s", file.Name())
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := u.Descriptors(); len(got) != 0 {
		t.Errorf("closing the file should release its descriptor, still open: %v", got)
	}

	t.Log("✓ AbsFS provides working absfs.FileSystem")
}

// TestAbsFSWrite verifies writes through the view
func TestAbsFSWrite(t *testing.T) {
	v := mustNewVolume(t, nil)
	view := AbsFS(v)

	if err := view.MkdirAll("/var/log", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	f, err := view.Create("/var/log/app.log")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.WriteString("started\n"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	f.Close()

	data, err := v.ReadFile("/var/log/app.log")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "started\n" {
		t.Errorf("expected 'started\\n', got '%s'", data)
	}

	if err := view.Chmod("/var/log/app.log", 0o600); !errors.Is(err, absfs.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented from Chmod, got %v", err)
	}
}

// TestDescriptorFileReadDir verifies directory reads through an open directory
func TestDescriptorFileReadDir(t *testing.T) {
	v := mustNewVolume(t, map[string]string{"/d/a": "", "/d/b": "", "/d/c": ""})
	view := AbsFS(v)

	dir, err := view.Open("/d")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dir.Close()

	first, err := dir.ReadDir(2)
	if err != nil {
		t.Fatalf("ReadDir(2) failed: %v", err)
	}
	if got := entryNames(first); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}

	names, err := dir.Readdirnames(-1)
	if err != nil {
		t.Fatalf("Readdirnames failed: %v", err)
	}
	if !slices.Equal(names, []string{"c"}) {
		t.Errorf("expected [c], got %v", names)
	}

	if _, err := dir.ReadDir(1); err != io.EOF {
		t.Errorf("expected io.EOF at end of directory, got %v", err)
	}
}

// TestIOFS verifies the io/fs view
func TestIOFS(t *testing.T) {
	u := NewUnion([]FileSystem{
		mustNewVolume(t, map[string]string{"/app/main.py": "print('hi')"}),
		mustNewVolume(t, map[string]string{"/app/lib/util.py": "pass", "/README": "docs"}),
	})

	fsys, err := IOFS(u)
	if err != nil {
		t.Fatalf("IOFS failed: %v", err)
	}

	data, err := fs.ReadFile(fsys, "app/main.py")
	if err != nil {
		t.Fatalf("fs.ReadFile failed: %v", err)
	}
	if string(data) != "print('hi')" {
		t.Errorf("unexpected contents '%s'", data)
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir failed: %v", err)
	}
	want := []string{"README", "app/lib/util.py", "app/main.py"}
	if !slices.Equal(files, want) {
		t.Errorf("expected %v, got %v", want, files)
	}

	sub, err := fs.Sub(fsys, "app/lib")
	if err != nil {
		t.Fatalf("fs.Sub failed: %v", err)
	}
	if _, err := fs.Stat(sub, "util.py"); err != nil {
		t.Errorf("Stat in sub failed: %v", err)
	}

	if _, err := fsys.Open("../escape"); err == nil {
		t.Error("invalid path should be rejected")
	}
}
