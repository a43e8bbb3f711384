package wasifs

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/absfs/absfs"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Extract decodes the zip archive in data and recreates its directories and
// files under mountPoint inside target. It performs no I/O beyond target.
//
// Stored, deflated and zstd-compressed entries are supported. Any decoding
// failure, an entry that would land outside mountPoint, or an entry that
// collides with a file already in target is returned as *ArchiveFormatError. Entries extracted before the failure stay
// in target; callers are expected to discard it.
func Extract(data []byte, target *Volume, mountPoint string) error {
	if mountPoint == "" {
		mountPoint = "/"
	}
	mountPoint = cleanPath(mountPoint)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ArchiveFormatError{MountPoint: mountPoint, Err: err}
	}
	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	r.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	tree := target.Tree()
	if err := tree.MkdirAll(mountPoint, 0o755); err != nil {
		return &ArchiveFormatError{MountPoint: mountPoint, Err: fmt.Errorf("create mount point: %w", err)}
	}

	var files, dirs int
	for _, f := range r.File {
		dest, err := entryPath(mountPoint, f.Name)
		if err != nil {
			return &ArchiveFormatError{MountPoint: mountPoint, Entry: f.Name, Err: err}
		}

		if f.FileInfo().IsDir() {
			if err := tree.MkdirAll(dest, dirPerm(f.Mode())); err != nil {
				return &ArchiveFormatError{MountPoint: mountPoint, Entry: f.Name, Err: err}
			}
			dirs++
			continue
		}

		if err := tree.MkdirAll(path.Dir(dest), 0o755); err != nil {
			return &ArchiveFormatError{MountPoint: mountPoint, Entry: f.Name, Err: err}
		}
		contents, err := readEntry(f)
		if err != nil {
			return &ArchiveFormatError{MountPoint: mountPoint, Entry: f.Name, Err: err}
		}
		if err := writeTreeFile(tree, dest, contents, filePerm(f.Mode())); err != nil {
			return &ArchiveFormatError{MountPoint: mountPoint, Entry: f.Name, Err: err}
		}
		if err := setModTime(tree, dest, f.Modified); err != nil {
			Logger().Debug("modification time not applied",
				zap.String("path", dest),
				zap.Error(err),
			)
		}
		files++
	}

	digest := blake3.Sum256(data)
	Logger().Debug("archive extracted",
		zap.String("mountpoint", mountPoint),
		zap.Int("files", files),
		zap.Int("dirs", dirs),
		zap.Int("bytes", len(data)),
		zap.String("blake3", hex.EncodeToString(digest[:])),
	)
	return nil
}

// entryPath resolves an archive entry name under mountPoint, rejecting names
// that escape it.
func entryPath(mountPoint, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("illegal entry name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("entry escapes mount point")
		}
	}
	return path.Join(mountPoint, name), nil
}

// setModTime applies an entry's modification time. Trees that do not keep
// timestamps are not an error.
func setModTime(tree absfs.FileSystem, name string, mtime time.Time) error {
	if mtime.IsZero() {
		return nil
	}
	err := tree.Chtimes(name, mtime, mtime)
	if errors.Is(err, absfs.ErrNotImplemented) || errors.Is(err, errors.ErrUnsupported) {
		return nil
	}
	return err
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func filePerm(mode os.FileMode) os.FileMode {
	if perm := mode.Perm(); perm != 0 {
		return perm
	}
	return 0o644
}

// dirPerm adds the search bit wherever the read bit is set. Archives written
// on FAT based systems carry 0666 for directories.
func dirPerm(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return 0o755
	}
	return perm | (perm&0o444)>>2
}
