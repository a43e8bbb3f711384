package wasifs

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

// PreResolutionRequiredError is returned when an archive reference reaches
// the resolver. File and URL references must be read into memory upstream
// and passed as an Archive source.
type PreResolutionRequiredError struct {
	Type SourceType
	Ref  string
}

func (e *PreResolutionRequiredError) Error() string {
	return fmt.Sprintf("you must convert %s -- read %s into memory and pass it as a %s source", e.Type, e.Ref, TypeArchive)
}

// ArchiveFormatError is returned when an archive buffer cannot be decoded.
type ArchiveFormatError struct {
	MountPoint string
	Entry      string
	Err        error
}

func (e *ArchiveFormatError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("invalid archive for %s: entry %q: %v", e.MountPoint, e.Entry, e.Err)
	}
	return fmt.Sprintf("invalid archive for %s: %v", e.MountPoint, e.Err)
}

func (e *ArchiveFormatError) Unwrap() error { return e.Err }

// DeviceDescriptorError is returned when the descriptor allocator hands a
// standard stream a number other than its fixed one.
type DeviceDescriptorError struct {
	Stream string
	Got    int
	Want   int
}

func (e *DeviceDescriptorError) Error() string {
	return fmt.Sprintf("invalid handle for %s: %d (want %d)", e.Stream, e.Got, e.Want)
}

// SpecError is returned for a source description that is nil, malformed or of
// an unknown type.
type SpecError struct {
	Source any
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("unknown spec type - %s: %#v", e.Reason, e.Source)
}

// classify maps the typed errors of this package to platform error codes.
// None of them are retryable: they stem from bad input or a broken environment.
func classify(err error) platformerrors.ErrorCode {
	var (
		preErr     *PreResolutionRequiredError
		archiveErr *ArchiveFormatError
		specErr    *SpecError
	)
	switch {
	case errors.As(err, &preErr):
		return platformerrors.CodeInvalidInput
	case errors.As(err, &archiveErr):
		return platformerrors.CodeInvalidInput
	case errors.As(err, &specErr):
		return platformerrors.CodeInvalidConfig
	}
	// DeviceDescriptorError and allocation failures.
	return platformerrors.CodeInternal
}

// wrapLayerError attaches the failing layer to err while keeping the typed
// error reachable through errors.As.
func wrapLayerError(err error, layer int, src Source) error {
	return platformerrors.WrapWithContext(err, classify(err), "compose filesystem", map[string]interface{}{
		"layer": layer,
		"type":  string(typeOf(src)),
	})
}
