package repository

import (
	"github.com/okian/trajan/internal/domain/dedupe"
	"github.com/okian/trajan/pkg/logger"
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithDeduper sets the duplicate frame-row detector.
func WithDeduper(d dedupe.Deduper) Option {
	return func(b *Builder) {
		if d != nil {
			b.dedupe = d
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}
