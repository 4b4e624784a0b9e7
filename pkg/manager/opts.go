package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	// Packages
	uploader "github.com/mutablelogic/go-uploader"
	gateway "github.com/mutablelogic/go-uploader/pkg/gateway"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for upload manager configuration.
type Opt func(*opts) error

type opts struct {
	tracer      trace.Tracer
	meter       metric.Meter
	logger      *slog.Logger
	gateway     uploader.Gateway
	routes      map[string]Route
	concurrency int           // 0 means one goroutine per file
	timeout     time.Duration // per-file gateway timeout, 0 means none
	rollback    bool          // delete stored files when a batch fails
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithTracer sets the tracer used for tracing operations.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter sets the meter used to count uploaded files and bytes.
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		o.meter = meter
		return nil
	}
}

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

// WithGateway sets the remote storage gateway. The manager takes ownership
// and closes it on Close.
func WithGateway(g uploader.Gateway) Opt {
	return func(o *opts) error {
		if g == nil {
			return fmt.Errorf("gateway is nil")
		} else if o.gateway != nil {
			return fmt.Errorf("gateway %q already registered", o.gateway.Name())
		}
		o.gateway = g
		return nil
	}
}

// WithGatewayURL opens a blob gateway (mem://, file://, s3://) and sets it as
// the remote storage gateway.
func WithGatewayURL(ctx context.Context, url string, gatewayOpts ...gateway.Opt) Opt {
	return func(o *opts) error {
		g, err := gateway.New(ctx, url, gatewayOpts...)
		if err != nil {
			return err
		}
		if err := WithGateway(g)(o); err != nil {
			return fmt.Errorf("%w (while opening %q)", err, url)
		}
		return nil
	}
}

// WithRoute adds or replaces a named upload route.
func WithRoute(name string, route Route) Opt {
	return func(o *opts) error {
		if err := route.check(); err != nil {
			return fmt.Errorf("route %q: %w", name, err)
		}
		o.routes[name] = route
		return nil
	}
}

// WithConcurrency limits the number of files sent to the gateway at once
// within a batch. Zero means no limit.
func WithConcurrency(n int) Opt {
	return func(o *opts) error {
		if n < 0 {
			return fmt.Errorf("concurrency must not be negative")
		}
		o.concurrency = n
		return nil
	}
}

// WithTaskTimeout bounds the time allowed for each file to be stored.
func WithTaskTimeout(d time.Duration) Opt {
	return func(o *opts) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
		o.timeout = d
		return nil
	}
}

// WithRollback deletes the files already stored when a batch fails under
// the all-or-nothing failure mode. By default they are left in place.
func WithRollback() Opt {
	return func(o *opts) error {
		o.rollback = true
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		logger: slog.New(slog.DiscardHandler),
		routes: DefaultRoutes(),
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			if o.gateway != nil {
				o.gateway.Close()
			}
			return opts{}, err
		}
	}

	// Return success
	return o, nil
}
