package uploader

import (
	"context"
	"io"

	// Packages
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Gateway is the remote storage which durably stores uploaded bytes and
// returns a URL and public identifier for each object. Implementations must
// be safe for concurrent use.
type Gateway interface {
	io.Closer

	// Name returns the name of the storage account
	Name() string

	// Upload streams a file into storage
	Upload(context.Context, schema.UploadRequest) (*schema.Asset, error)

	// Get returns asset metadata
	Get(context.Context, string) (*schema.Asset, error)

	// Read returns asset content. Caller must close the returned reader.
	Read(context.Context, string) (io.ReadCloser, *schema.Asset, error)

	// Delete removes an asset and returns its last known metadata
	Delete(context.Context, string) (*schema.Asset, error)
}
