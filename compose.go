package wasifs

import (
	"go.uber.org/zap"
)

// Compose builds the filesystem handle a WASI runtime is bootstrapped with.
//
// With no sources the result is a fresh, empty volume. A single source is
// resolved and returned as is, without a union around it; a single Native
// source with no binding therefore yields a nil handle. With several sources
// each is resolved in order and the results are layered with first-wins
// precedence, skipping nil results.
//
// Resolution stops at the first error, which is wrapped with the index and
// type of the failing source. The typed cause stays reachable through
// errors.As.
func Compose(sources []Source, b Bindings, opts ...Option) (FileSystem, error) {
	cfg := newConfig(opts)

	switch len(sources) {
	case 0:
		cfg.logger.Debug("composing empty volume")
		return asFileSystem(NewVolume(nil))
	case 1:
		fsys, err := Resolve(sources[0], b)
		if err != nil {
			return nil, wrapLayerError(err, 0, sources[0])
		}
		cfg.logger.Debug("composed single source", zap.String("type", string(typeOf(sources[0]))))
		return fsys, nil
	}

	layers := make([]FileSystem, 0, len(sources))
	for i, src := range sources {
		fsys, err := Resolve(src, b)
		if err != nil {
			cfg.logger.Debug("source failed to resolve",
				zap.Int("layer", i),
				zap.String("type", string(typeOf(src))),
				zap.Error(err),
			)
			return nil, wrapLayerError(err, i, src)
		}
		if fsys == nil {
			cfg.logger.Debug("skipping unbound source",
				zap.Int("layer", i),
				zap.String("type", string(typeOf(src))),
			)
			continue
		}
		layers = append(layers, fsys)
	}

	return NewUnion(layers, opts...), nil
}
