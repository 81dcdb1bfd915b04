package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"courtpulse/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	writer io.Writer = os.Stdout
	closer io.Closer
)

// Init configures the global zerolog logger. The returned writer is shared with
// the HTTP access log so both streams end up in the same sink.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var sink io.Writer = os.Stdout
	var fileCloser io.Closer
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := openRotatingFile(path, cfg.MaxMB)
		if err != nil {
			return err
		}
		sink = io.MultiWriter(os.Stdout, f)
		fileCloser = f
	}

	var output io.Writer = sink
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: sink}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	writer = sink
	closer = fileCloser
	mu.Unlock()
	return nil
}

// Writer returns the raw sink configured by Init.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return writer
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	writer = os.Stdout
	return err
}
