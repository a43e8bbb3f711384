package wasifs

import "reflect"

// Bindings carries the environment a composition resolves against.
type Bindings struct {
	// FS is the host filesystem a Native source resolves to. It may be nil,
	// meaning no native access is granted.
	FS FileSystem
}

// Resolve maps one source description to a fresh filesystem instance.
//
// A Native source returns b.FS verbatim, or nil when b.FS is nil or holds a
// nil pointer. ArchiveFile and
// ArchiveURL sources always fail with *PreResolutionRequiredError: this
// function never reads files or the network. A nil or unrecognized source
// fails with *SpecError.
func Resolve(src Source, b Bindings) (FileSystem, error) {
	switch s := deref(src).(type) {
	case Native:
		if isNilFS(b.FS) {
			return nil, nil
		}
		return b.FS, nil
	case Device:
		return asFileSystem(NewDeviceVolume())
	case Memory:
		return asFileSystem(NewVolume(s.Contents))
	case Archive:
		return asFileSystem(archiveVolume(s))
	case ArchiveFile:
		return nil, &PreResolutionRequiredError{Type: TypeArchiveFile, Ref: s.Path}
	case ArchiveURL:
		return nil, &PreResolutionRequiredError{Type: TypeArchiveURL, Ref: s.URL}
	case nil:
		return nil, &SpecError{Source: src, Reason: "nil source"}
	}
	return nil, &SpecError{Source: src, Reason: "unrecognized source"}
}

// isNilFS reports whether fsys is nil, including a nil pointer stored in the
// interface.
func isNilFS(fsys FileSystem) bool {
	if fsys == nil {
		return true
	}
	v := reflect.ValueOf(fsys)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// deref turns pointer variants into values. Nil pointers are left alone and
// end up unrecognized.
func deref(src Source) Source {
	switch s := src.(type) {
	case *Native:
		if s != nil {
			return *s
		}
	case *Device:
		if s != nil {
			return *s
		}
	case *Memory:
		if s != nil {
			return *s
		}
	case *Archive:
		if s != nil {
			return *s
		}
	case *ArchiveFile:
		if s != nil {
			return *s
		}
	case *ArchiveURL:
		if s != nil {
			return *s
		}
	}
	return src
}

// asFileSystem avoids wrapping a nil *Volume in a non-nil interface.
func asFileSystem(v *Volume, err error) (FileSystem, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func archiveVolume(a Archive) (*Volume, error) {
	v, err := NewVolume(nil)
	if err != nil {
		return nil, err
	}
	if err := Extract(a.Data, v, a.MountPoint); err != nil {
		return nil, err
	}
	return v, nil
}
