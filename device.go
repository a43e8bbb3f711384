package wasifs

import (
	"os"

	"go.uber.org/zap"
)

// Paths of the standard streams inside a device volume.
const (
	DevStdin  = "/dev/stdin"
	DevStdout = "/dev/stdout"
	DevStderr = "/dev/stderr"
)

// NewDeviceVolume creates a volume holding /dev/stdin, /dev/stdout and
// /dev/stderr, pre-opened as descriptors 0, 1 and 2.
//
// The streams are opened stderr first, then stdout, then stdin, after
// releasing 0, 1 and 2 to the allocator, which hands released numbers back
// in reverse. Each resulting number is checked; any mismatch is a
// *DeviceDescriptorError.
func NewDeviceVolume() (*Volume, error) {
	v, err := NewVolume(map[string][]byte{
		DevStdin:  {},
		DevStdout: {},
		DevStderr: {},
	})
	if err != nil {
		return nil, err
	}
	v.fds.release(FdStdin, FdStdout, FdStderr)
	if err := openDeviceStreams(v); err != nil {
		return nil, err
	}
	return v, nil
}

// openDeviceStreams opens the three streams in descriptor-allocation order
// and verifies the numbers they received.
func openDeviceStreams(v *Volume) error {
	streams := []struct {
		name string
		path string
		flag int
		want int
	}{
		{"stderr", DevStderr, os.O_WRONLY | os.O_CREATE | os.O_TRUNC, FdStderr},
		{"stdout", DevStdout, os.O_WRONLY | os.O_CREATE | os.O_TRUNC, FdStdout},
		{"stdin", DevStdin, os.O_RDONLY, FdStdin},
	}
	fds := make([]int, len(streams))
	for i, s := range streams {
		fd, err := v.Open(s.path, s.flag, 0o666)
		if err != nil {
			return err
		}
		fds[i] = fd
	}
	for i, s := range streams {
		if fds[i] != s.want {
			return &DeviceDescriptorError{Stream: s.name, Got: fds[i], Want: s.want}
		}
	}

	Logger().Debug("device volume ready",
		zap.Int("stdin", fds[2]),
		zap.Int("stdout", fds[1]),
		zap.Int("stderr", fds[0]),
	)
	return nil
}
