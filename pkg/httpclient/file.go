package httpclient

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// readFileUnmarshaler streams the response body to fn in chunks and captures
// the asset metadata from the response headers.
type readFileUnmarshaler struct {
	asset *schema.Asset
	fn    func([]byte) error
}

var _ client.Unmarshaler = (*readFileUnmarshaler)(nil)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// DeleteFile removes a stored file by public id and returns its metadata.
func (c *Client) DeleteFile(ctx context.Context, publicID string) (*schema.Asset, error) {
	var response schema.Asset
	if err := c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodDelete, types.ContentTypeJSON),
		&response,
		client.OptPath("file", strings.TrimPrefix(publicID, "/")),
	); err != nil {
		return nil, transportErr(err)
	}
	return &response, nil
}

// ReadFile downloads a stored file, calling fn with each chunk of the body.
func (c *Client) ReadFile(ctx context.Context, publicID string, fn func([]byte) error) (*schema.Asset, error) {
	response := readFileUnmarshaler{
		asset: &schema.Asset{PublicID: strings.TrimPrefix(publicID, "/")},
		fn:    fn,
	}
	if err := c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodGet, ""),
		&response,
		client.OptPath("file", response.asset.PublicID),
		client.OptNoTimeout(),
	); err != nil {
		return nil, transportErr(err)
	}
	return response.asset, nil
}

// Policies returns the intake policy of each upload route.
func (c *Client) Policies(ctx context.Context) (map[string]policy.Policy, error) {
	var response map[string]policy.Policy
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath("policy")); err != nil {
		return nil, transportErr(err)
	}
	return response, nil
}

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (r *readFileUnmarshaler) Unmarshal(header http.Header, reader io.Reader) error {
	r.asset.ContentType = header.Get(types.ContentTypeHeader)
	r.asset.ETag = header.Get("ETag")
	if size, err := strconv.ParseInt(header.Get(types.ContentLengthHeader), 10, 64); err == nil {
		r.asset.Size = size
	}
	if t, err := http.ParseTime(header.Get(types.ContentModifiedHeader)); err == nil {
		r.asset.ModTime = t.In(time.UTC)
	}
	if _, params, err := mime.ParseMediaType(header.Get(types.ContentDispositonHeader)); err == nil {
		r.asset.Name = params["filename"]
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 && r.fn != nil {
			if callErr := r.fn(buf[:n]); callErr != nil {
				return callErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
