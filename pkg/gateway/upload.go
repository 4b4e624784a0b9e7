package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	// Packages
	uuid "github.com/google/uuid"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// sniffLen is the number of bytes used to detect content type
const sniffLen = 512

// idLen is the length of the random component of a public id
const idLen = 20

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Upload streams a file into storage under a new public id within the
// requested folder. With ResourceAuto the resource type is detected from
// the first bytes of the content.
func (g *Gateway) Upload(ctx context.Context, req schema.UploadRequest) (*schema.Asset, error) {
	if req.Body == nil {
		return nil, httpresponse.ErrBadRequest.With("missing body")
	}

	// Generate the public id
	folder := strings.Trim(path.Clean("/"+req.Folder), "/")
	publicID := newID()
	if folder != "" {
		publicID = folder + "/" + publicID
	}

	// Sniff the content and resolve the resource type
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(req.Body, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	sniffed := http.DetectContentType(buf[:n])
	resourceType, err := resolveResourceType(req.ResourceType, sniffed)
	if err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" || contentType == types.ContentTypeBinary {
		contentType = sniffed
	}

	// Write the object, stitching the sniffed bytes back onto the body
	body := io.MultiReader(bytes.NewReader(buf[:n]), req.Body)
	if w, err := g.bucket.NewWriter(ctx, publicID, &blob.WriterOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			schema.AttrFilename:     req.Name,
			schema.AttrFolder:       folder,
			schema.AttrResourceType: string(resourceType),
		},
	}); err != nil {
		return nil, blobErr(err, publicID)
	} else if _, err := io.Copy(w, body); err != nil {
		err = errors.Join(err, w.Close())
		g.bucket.Delete(context.WithoutCancel(ctx), publicID)
		return nil, blobErr(err, publicID)
	} else if err := w.Close(); err != nil {
		g.bucket.Delete(context.WithoutCancel(ctx), publicID)
		return nil, blobErr(err, publicID)
	}

	// Get attributes to return
	attrs, err := g.bucket.Attributes(ctx, publicID)
	if err != nil {
		// The write succeeded but we couldn't fetch the final metadata.
		// Return a partial asset rather than an error so the caller does
		// not retry and duplicate the object.
		return &schema.Asset{
			PublicID:     publicID,
			URL:          g.URL(publicID),
			Name:         req.Name,
			Folder:       folder,
			ResourceType: resourceType,
			ContentType:  contentType,
		}, nil
	}

	// Return success
	return g.attrsToAsset(publicID, attrs), nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLen]
}

func resolveResourceType(requested schema.ResourceType, sniffed string) (schema.ResourceType, error) {
	detected := schema.ResourceRaw
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		detected = schema.ResourceImage
	case strings.HasPrefix(sniffed, "video/"), strings.HasPrefix(sniffed, "audio/"):
		detected = schema.ResourceVideo
	}

	switch requested {
	case "", schema.ResourceAuto:
		return detected, nil
	case schema.ResourceRaw:
		return schema.ResourceRaw, nil
	case schema.ResourceImage, schema.ResourceVideo:
		if detected != requested {
			return "", fmt.Errorf("%w: content is not a valid %s file", schema.ErrInvalidResource, requested)
		}
		return requested, nil
	default:
		return "", fmt.Errorf("%w: unknown resource type %q", schema.ErrInvalidResource, requested)
	}
}
