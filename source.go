package wasifs

// SourceType is the discriminant of a source description.
type SourceType string

const (
	// TypeNative defers to the host filesystem supplied in Bindings.
	TypeNative SourceType = "native"
	// TypeDevice provides the three standard streams.
	TypeDevice SourceType = "dev"
	// TypeArchive is an in-memory zip archive.
	TypeArchive SourceType = "zip"
	// TypeArchiveFile is a zip archive on disk. It must be pre-resolved.
	TypeArchiveFile SourceType = "zipfile"
	// TypeArchiveURL is a zip archive behind a URL. It must be pre-resolved.
	TypeArchiveURL SourceType = "zipurl"
	// TypeMemory is an in-memory volume with optional seed contents.
	TypeMemory SourceType = "mem"
)

// Source describes one filesystem origin to mount. It is implemented only by
// the variants in this package: Native, Device, Archive, ArchiveFile,
// ArchiveURL and Memory.
type Source interface {
	Type() SourceType
	isSource()
}

// Native defers to the filesystem in Bindings.FS.
type Native struct{}

// Device requests /dev/stdin, /dev/stdout and /dev/stderr pre-opened as 0, 1 and 2.
type Device struct{}

// Archive is a zip archive already read into memory, extracted under MountPoint.
type Archive struct {
	Data       []byte
	MountPoint string
}

// ArchiveFile references a zip archive on disk. See the preload package.
type ArchiveFile struct {
	Path       string
	MountPoint string
}

// ArchiveURL references a zip archive behind a URL. See the preload package.
type ArchiveURL struct {
	URL        string
	MountPoint string
}

// Memory is an in-memory volume. Contents maps paths to file data; keys
// ending in "/" are directories. A nil map yields an empty volume.
type Memory struct {
	Contents map[string][]byte
}

func (Native) Type() SourceType      { return TypeNative }
func (Device) Type() SourceType      { return TypeDevice }
func (Archive) Type() SourceType     { return TypeArchive }
func (ArchiveFile) Type() SourceType { return TypeArchiveFile }
func (ArchiveURL) Type() SourceType  { return TypeArchiveURL }
func (Memory) Type() SourceType      { return TypeMemory }

func (Native) isSource()      {}
func (Device) isSource()      {}
func (Archive) isSource()     {}
func (ArchiveFile) isSource() {}
func (ArchiveURL) isSource()  {}
func (Memory) isSource()      {}

// typeOf returns the discriminant of src, or "" for nil.
func typeOf(src Source) SourceType {
	if src == nil {
		return ""
	}
	return src.Type()
}

// StringContents converts text contents into Memory contents.
func StringContents(files map[string]string) map[string][]byte {
	if files == nil {
		return nil
	}
	contents := make(map[string][]byte, len(files))
	for name, data := range files {
		contents[name] = []byte(data)
	}
	return contents
}
