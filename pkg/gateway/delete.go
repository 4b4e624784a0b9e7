package gateway

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Delete removes an asset
func (g *Gateway) Delete(ctx context.Context, publicID string) (*schema.Asset, error) {
	k, err := key(publicID)
	if err != nil {
		return nil, err
	}

	// Attributes may not exist, continue with delete
	attrs, err := g.bucket.Attributes(ctx, k)
	if err != nil {
		attrs = nil
	}

	// Perform delete
	if err := g.bucket.Delete(ctx, k); err != nil {
		return nil, blobErr(err, k)
	}

	if attrs != nil {
		return g.attrsToAsset(k, attrs), nil
	}
	return &schema.Asset{PublicID: k, URL: g.URL(k)}, nil
}
