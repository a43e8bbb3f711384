package wasifs

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

// Volume is an in-memory tree of directories and files with synchronous,
// descriptor based access.
type Volume struct {
	descriptorFS
}

var _ FileSystem = (*Volume)(nil)

// NewVolume creates a volume rooted at "/" and seeds it from contents.
//
// Every key becomes a file holding its value, with implied parent
// directories. Keys ending in "/" become directories. Keys are applied in
// sorted order so seeding is deterministic. A nil map yields an empty volume.
func NewVolume(contents map[string][]byte) (*Volume, error) {
	tree, err := memfs.NewFS()
	if err != nil {
		return nil, fmt.Errorf("create volume: %w", err)
	}
	v := &Volume{descriptorFS: newDescriptorFS(tree)}
	if err := v.seed(contents); err != nil {
		return nil, err
	}
	return v, nil
}

// Tree returns the underlying absfs view of the volume. Writes through the
// tree are visible to descriptor operations and vice versa.
func (v *Volume) Tree() absfs.FileSystem {
	return v.tree
}

func (v *Volume) seed(contents map[string][]byte) error {
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cleanPath(name)
		if strings.HasSuffix(name, "/") {
			if err := v.tree.MkdirAll(p, 0o755); err != nil {
				return fmt.Errorf("seed directory %s: %w", p, err)
			}
			continue
		}
		if dir := path.Dir(p); dir != "/" {
			if err := v.tree.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("seed directory %s: %w", dir, err)
			}
		}
		if err := writeTreeFile(v.tree, p, contents[name], 0o644); err != nil {
			return fmt.Errorf("seed file %s: %w", p, err)
		}
	}
	return nil
}
