package manager

import (
	"context"
	"errors"
	"io"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	metric "go.opentelemetry.io/otel/metric"
	noop "go.opentelemetry.io/otel/metric/noop"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Manager struct {
	opts
	files metric.Int64Counter // files attempted, by status
	bytes metric.Int64Counter // bytes stored
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload manager. A gateway is required.
func New(ctx context.Context, opts ...Opt) (*Manager, error) {
	self := new(Manager)

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}
	if self.gateway == nil {
		return nil, httpresponse.ErrInternalError.With("no gateway configured")
	}

	// Set up metrics
	if self.meter == nil {
		self.meter = noop.NewMeterProvider().Meter(schema.SchemaName)
	}
	var result error
	if counter, err := self.meter.Int64Counter(schema.SchemaName+".files",
		metric.WithDescription("Files sent to the storage gateway"),
		metric.WithUnit("{file}"),
	); err != nil {
		result = errors.Join(result, err)
	} else {
		self.files = counter
	}
	if counter, err := self.meter.Int64Counter(schema.SchemaName+".bytes",
		metric.WithDescription("Bytes stored by the storage gateway"),
		metric.WithUnit("By"),
	); err != nil {
		result = errors.Join(result, err)
	} else {
		self.bytes = counter
	}
	if result != nil {
		return nil, errors.Join(result, self.gateway.Close())
	}

	// Return success
	return self, nil
}

// Close the gateway
func (manager *Manager) Close() error {
	var result error
	if manager.gateway != nil {
		result = errors.Join(result, manager.gateway.Close())
		manager.gateway = nil
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the gateway account name
func (manager *Manager) Name() string {
	return manager.gateway.Name()
}

// GetAsset returns asset metadata
func (manager *Manager) GetAsset(ctx context.Context, publicID string) (_ *schema.Asset, err error) {
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("GetAsset"))
	defer func() { endFunc(err) }()

	return manager.gateway.Get(child, publicID)
}

// ReadAsset returns asset content and metadata. Caller must close the reader.
func (manager *Manager) ReadAsset(ctx context.Context, publicID string) (_ io.ReadCloser, _ *schema.Asset, err error) {
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("ReadAsset"))
	defer func() { endFunc(err) }()

	return manager.gateway.Read(child, publicID)
}

// DeleteAsset removes an asset
func (manager *Manager) DeleteAsset(ctx context.Context, publicID string) (_ *schema.Asset, err error) {
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("DeleteAsset"))
	defer func() { endFunc(err) }()

	asset, err := manager.gateway.Delete(child, publicID)
	if err == nil {
		manager.logger.InfoContext(ctx, "asset deleted", "public_id", asset.PublicID)
	}
	return asset, err
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanManagerName(op string) string {
	return schema.SchemaName + ".manager." + op
}
