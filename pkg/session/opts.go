package session

import (
	"fmt"
	"log/slog"
	"os"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for an upload session.
type Opt func(*opts) error

// Mode selects how queued files are sent to the server.
type Mode int

const (
	// ModeSingle sends one request per file to the single-file endpoint.
	ModeSingle Mode = iota

	// ModeBatch sends every queued file in one request to the
	// multiple-file endpoint.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeBatch:
		return "batch"
	default:
		return "unknown"
	}
}

type opts struct {
	logger      *slog.Logger
	mode        Mode
	concurrency int
	previewDir  string          // empty disables previews
	released    func(id string) // called once per released preview
}

const (
	defaultConcurrency = 4
)

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Opt {
	return func(o *opts) error {
		if logger == nil {
			return fmt.Errorf("logger is nil")
		}
		o.logger = logger
		return nil
	}
}

// WithMode sets how files are submitted. The default is ModeSingle.
func WithMode(mode Mode) Opt {
	return func(o *opts) error {
		switch mode {
		case ModeSingle, ModeBatch:
			o.mode = mode
			return nil
		default:
			return fmt.Errorf("unknown mode %d", mode)
		}
	}
}

// WithConcurrency bounds the number of requests in flight in ModeSingle.
func WithConcurrency(n int) Opt {
	return func(o *opts) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive")
		}
		o.concurrency = n
		return nil
	}
}

// WithPreviewDir enables local previews for images and PDFs, written as
// temporary files under dir.
func WithPreviewDir(dir string) Opt {
	return func(o *opts) error {
		if info, err := os.Stat(dir); err != nil {
			return err
		} else if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", dir)
		}
		o.previewDir = dir
		return nil
	}
}

// WithPreviewRelease sets a callback invoked when a candidate's preview is
// released, which happens at most once per candidate.
func WithPreviewRelease(fn func(id string)) Opt {
	return func(o *opts) error {
		o.released = fn
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	o := opts{
		logger:      slog.New(slog.DiscardHandler),
		mode:        ModeSingle,
		concurrency: defaultConcurrency,
	}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	return o, nil
}
