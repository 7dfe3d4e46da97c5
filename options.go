package pbl

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
)

const (
	defaultCacheSize     = 1 << 10 // reassembled objects
	defaultNodeCacheSize = 256     // decoded node blocks
)

// Option configures a Library during construction.
type Option func(*Library)

// WithLogger routes diagnostics to log. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Library) {
		if log != nil {
			l.log = log
		}
	}
}

// WithCacheSize sets how many reassembled objects are kept in memory.
// A size of 0 or less disables the cache.
func WithCacheSize(n int) Option {
	return func(l *Library) { l.cacheSize = n }
}

// WithNodeCacheSize sets how many decoded node blocks Find keeps.
func WithNodeCacheSize(n int) Option {
	return func(l *Library) {
		if n > 0 {
			l.nodeCacheSize = n
		}
	}
}

// WithWorkers bounds the number of goroutines ReadAll uses.
func WithWorkers(n int) Option {
	return func(l *Library) {
		if n > 0 {
			l.workers = n
		}
	}
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func defaultWorkers() int { return runtime.GOMAXPROCS(0) }
