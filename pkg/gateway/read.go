package gateway

import (
	"context"
	"io"

	// Packages
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Get returns asset metadata
func (g *Gateway) Get(ctx context.Context, publicID string) (*schema.Asset, error) {
	k, err := key(publicID)
	if err != nil {
		return nil, err
	}
	attrs, err := g.bucket.Attributes(ctx, k)
	if err != nil {
		return nil, blobErr(err, k)
	}
	return g.attrsToAsset(k, attrs), nil
}

// Read returns asset content and metadata
func (g *Gateway) Read(ctx context.Context, publicID string) (io.ReadCloser, *schema.Asset, error) {
	k, err := key(publicID)
	if err != nil {
		return nil, nil, err
	}
	attrs, err := g.bucket.Attributes(ctx, k)
	if err != nil {
		return nil, nil, blobErr(err, k)
	}
	r, err := g.bucket.NewReader(ctx, k, nil)
	if err != nil {
		return nil, nil, blobErr(err, k)
	}
	return r, g.attrsToAsset(k, attrs), nil
}
