// Package bootstrap hands a composed filesystem to a wazero module.
//
// The handle is mounted read-only at "/" through its io/fs view, and the
// standard streams are bound to descriptors 0, 1 and 2 of the handle when
// those are open, as they are for any composition that includes a device
// source. Output the guest writes to stdout and stderr then lands in
// /dev/stdout and /dev/stderr of the handle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/absfs/wasifs"
)

// ModuleConfig returns base with handle mounted at "/" and the standard
// streams bound to the handle's descriptors. A nil base starts from
// wazero.NewModuleConfig().
func ModuleConfig(handle wasifs.FileSystem, base wazero.ModuleConfig) (wazero.ModuleConfig, error) {
	if handle == nil {
		return nil, errors.New("bootstrap: nil filesystem handle")
	}
	if base == nil {
		base = wazero.NewModuleConfig()
	}

	root, err := wasifs.IOFS(handle)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: mount root: %w", err)
	}
	cfg := base.WithFSConfig(wazero.NewFSConfig().WithFSMount(root, "/"))

	stdin, stdout, stderr := Stdio(handle)
	if stdin != nil {
		cfg = cfg.WithStdin(stdin)
	}
	if stdout != nil {
		cfg = cfg.WithStdout(stdout)
	}
	if stderr != nil {
		cfg = cfg.WithStderr(stderr)
	}

	wasifs.Logger().Debug("module config prepared",
		zap.Bool("stdin", stdin != nil),
		zap.Bool("stdout", stdout != nil),
		zap.Bool("stderr", stderr != nil),
	)
	return cfg, nil
}

// Stdio returns readers and writers for descriptors 0, 1 and 2 of handle.
// A stream whose descriptor is not open is nil.
func Stdio(handle wasifs.FileSystem) (stdin io.Reader, stdout, stderr io.Writer) {
	if isOpen(handle, wasifs.FdStdin) {
		stdin = &stream{fsys: handle, fd: wasifs.FdStdin}
	}
	if isOpen(handle, wasifs.FdStdout) {
		stdout = &stream{fsys: handle, fd: wasifs.FdStdout}
	}
	if isOpen(handle, wasifs.FdStderr) {
		stderr = &stream{fsys: handle, fd: wasifs.FdStderr}
	}
	return stdin, stdout, stderr
}

// Instantiate compiles wasm and instantiates it with ModuleConfig(handle,
// base). The runtime must already have any host modules the guest imports,
// such as wasi_snapshot_preview1.
func Instantiate(ctx context.Context, r wazero.Runtime, wasm []byte, handle wasifs.FileSystem, base wazero.ModuleConfig) (api.Module, error) {
	cfg, err := ModuleConfig(handle, base)
	if err != nil {
		return nil, err
	}
	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: compile: %w", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: instantiate: %w", err)
	}
	return mod, nil
}

func isOpen(handle wasifs.FileSystem, fd int) bool {
	_, err := handle.Fstat(fd)
	return !errors.Is(err, syscall.EBADF)
}

// stream is an io.ReadWriter over one descriptor.
type stream struct {
	fsys wasifs.FileSystem
	fd   int
}

func (s *stream) Read(p []byte) (int, error) {
	return s.fsys.Read(s.fd, p)
}

func (s *stream) Write(p []byte) (int, error) {
	return s.fsys.Write(s.fd, p)
}
