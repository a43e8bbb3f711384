// wasifs composes a virtual filesystem the way a WASI runtime would be
// bootstrapped with it, and lets you inspect the result.
//
// Usage:
//
//	wasifs [flags] ls [path]
//	wasifs [flags] cat path
//	wasifs [flags] tree [path]
//
// Sources come from the config file, or from --sources, which takes a JSON
// (comments allowed) or YAML list of source records. Archive file and URL
// references are loaded before composing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/absfs/wasifs"
	"github.com/absfs/wasifs/preload"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		sourcesPath string
		nativeRoot  string
		readOnly    bool
		logLevel    string
	)

	flagSet := pflag.NewFlagSet("wasifs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVar(&sourcesPath, "sources", "", "source list file (JSON or YAML), overrides the config sources")
	flagSet.StringVar(&nativeRoot, "native-root", "", "host directory native sources are bound to")
	flagSet.BoolVar(&readOnly, "read-only", true, "bind the native root read-only")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wasifs [flags] <ls|cat|tree> [path]\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("native-root") {
		cfg.Native.Root = nativeRoot
	}
	if flagSet.Changed("read-only") {
		cfg.Native.ReadOnly = readOnly
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	logger, err := newLogger(cfg.Log.Level, stderr)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	wasifs.SetLogger(logger)

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}
	command, target := rest[0], "/"
	if len(rest) > 1 {
		target = rest[1]
	}

	handle, err := compose(ctx, cfg, sourcesPath, logger)
	if err != nil {
		return err
	}
	if handle == nil {
		return errors.New("composition produced no filesystem")
	}

	switch command {
	case "ls":
		return list(stdout, handle, target)
	case "cat":
		if len(rest) < 2 {
			return errors.New("cat: missing path")
		}
		data, err := handle.ReadFile(target)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	case "tree":
		return tree(stdout, handle, target, "")
	}
	return fmt.Errorf("unknown command %q", command)
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	if level == "" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}

func compose(ctx context.Context, cfg *Config, sourcesPath string, logger *zap.Logger) (wasifs.FileSystem, error) {
	var sources []wasifs.Source
	if sourcesPath != "" {
		data, err := os.ReadFile(sourcesPath)
		if err != nil {
			return nil, fmt.Errorf("reading sources %s: %w", sourcesPath, err)
		}
		if sources, err = wasifs.ParseSources(data); err != nil {
			return nil, err
		}
	} else {
		for i, r := range cfg.Sources {
			src, err := r.Source()
			if err != nil {
				return nil, fmt.Errorf("config source %d: %w", i, err)
			}
			sources = append(sources, src)
		}
	}

	sources, err := preload.Sources(ctx, sources, preload.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var bindings wasifs.Bindings
	if cfg.Native.Root != "" {
		bindings.FS = wasifs.OSFS(cfg.Native.Root, cfg.Native.ReadOnly)
	}

	opts := []wasifs.Option{wasifs.WithLogger(logger)}
	if cfg.Cache.TTL > 0 {
		opts = append(opts, wasifs.WithLookupCache(cfg.Cache.TTL, cfg.Cache.MaxEntries))
	}
	return wasifs.Compose(sources, bindings, opts...)
}

func list(w io.Writer, fsys wasifs.FileSystem, name string) error {
	entries, err := fsys.ReadDir(name)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		suffix := ""
		if entry.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(w, "%s%s\n", entry.Name(), suffix)
	}
	return nil
}

func tree(w io.Writer, fsys wasifs.FileSystem, name, indent string) error {
	entries, err := fsys.ReadDir(name)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(w, "%s%s/\n", indent, entry.Name())
			if err := tree(w, fsys, path.Join(name, entry.Name()), indent+"  "); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%s%s\n", indent, entry.Name())
	}
	return nil
}
