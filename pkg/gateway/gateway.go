package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"syscall"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	uploader "github.com/mutablelogic/go-uploader"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Gateway stores assets in a Go CDK blob bucket.
type Gateway struct {
	*opt
	bucket *blob.Bucket
}

var _ uploader.Gateway = (*Gateway)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New opens a gateway. Supported URL schemes:
//   - "mem://name"
//   - "file://name/absolute/path/to/directory"
//   - "s3://bucket"
//
// The URL host names the storage account and must be a valid identifier.
func New(ctx context.Context, u string, opts ...Opt) (*Gateway, error) {
	self := new(Gateway)

	// Set the options
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else if opt, err := apply(url, opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Validate the account name
	if !types.IsIdentifier(self.url.Host) {
		return nil, fmt.Errorf("account name %q must be a valid identifier (letter, digits, underscores, hyphens; max 64 chars)", self.url.Host)
	}

	// Open the bucket
	bucket, err := self.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	// Return success
	return self, nil
}

// Close the gateway
func (g *Gateway) Close() error {
	var result error
	if g.bucket != nil {
		result = errors.Join(result, g.bucket.Close())
		g.bucket = nil
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the storage account name (the host component of the URL)
func (g *Gateway) Name() string {
	return g.url.Host
}

// URL returns the public URL for an asset
func (g *Gateway) URL(publicID string) string {
	if g.publicURL != nil {
		return g.publicURL.JoinPath(publicID).String()
	}
	switch g.url.Scheme {
	case "s3":
		if g.endpoint != "" {
			if u, err := url.Parse(g.endpoint); err == nil {
				return u.JoinPath(g.url.Host, publicID).String()
			}
		}
		region := g.region
		if region == "" && g.awsConfig != nil {
			region = g.awsConfig.Region
		}
		if region == "" {
			return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", g.url.Host, publicID)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", g.url.Host, region, publicID)
	default:
		return (&url.URL{Scheme: g.url.Scheme, Host: g.url.Host, Path: "/" + publicID}).String()
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (g *Gateway) open(ctx context.Context) (*blob.Bucket, error) {
	switch g.url.Scheme {
	case "s3":
		client, err := g.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		return s3blob.OpenBucket(ctx, client, g.url.Host, nil)
	case "file":
		// The URL path is the root directory of the bucket
		if !path.IsAbs(g.url.Path) || path.Clean(g.url.Path) == "/" {
			return nil, fmt.Errorf("directory %q must be an absolute path", g.url.Path)
		}
		openURL := &url.URL{Scheme: "file", Path: path.Clean(g.url.Path), RawQuery: g.url.RawQuery}
		return blob.OpenBucket(ctx, openURL.String())
	case "mem":
		return blob.OpenBucket(ctx, "mem://")
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", g.url.Scheme)
	}
}

// key validates a public id and returns it as a storage key
func key(publicID string) (string, error) {
	k := strings.TrimPrefix(publicID, "/")
	if k == "" || path.Clean(k) != k || k == ".." || strings.HasPrefix(k, "../") {
		return "", httpresponse.ErrBadRequest.Withf("invalid public id %q", publicID)
	}
	return k, nil
}

func (g *Gateway) attrsToAsset(publicID string, attrs *blob.Attributes) *schema.Asset {
	asset := &schema.Asset{
		PublicID:    publicID,
		URL:         g.URL(publicID),
		Size:        attrs.Size,
		ModTime:     attrs.ModTime,
		ContentType: attrs.ContentType,
		ETag:        attrs.ETag,
	}
	if attrs.Metadata != nil {
		asset.Name = attrs.Metadata[schema.AttrFilename]
		asset.Folder = attrs.Metadata[schema.AttrFolder]
		asset.ResourceType = schema.ResourceType(attrs.Metadata[schema.AttrResourceType])
	}
	return asset
}

// blobErr wraps a go-cloud blob error with the appropriate httpresponse error
func blobErr(err error, id string) error {
	if err == nil {
		return nil
	}
	// Check for OS-level errors before go-cloud classification, since the
	// gcerrors default path wraps with %v and breaks the chain.
	if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.EEXIST) {
		return httpresponse.ErrBadRequest.Withf("cannot overwrite directory with asset: %q", id)
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("asset %q not found", id)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", id)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", id, err)
	case gcerrors.FailedPrecondition:
		return httpresponse.ErrConflict.Withf("precondition failed for %q: %v", id, err)
	case gcerrors.Canceled, gcerrors.DeadlineExceeded:
		return fmt.Errorf("%q: %w", id, err)
	default:
		return httpresponse.ErrInternalError.Withf("blob operation failed: %v", err)
	}
}
