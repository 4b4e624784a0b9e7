package schema

import (
	"io"
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ResourceType classifies stored content. ResourceAuto asks the gateway to
// detect the type from the content itself.
type ResourceType string

const (
	ResourceAuto  ResourceType = "auto"
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
	ResourceRaw   ResourceType = "raw"
)

// UploadRequest is a single streamed upload to the gateway.
type UploadRequest struct {
	Name         string       // original filename
	Folder       string       // destination folder, prepended to the public id
	ResourceType ResourceType // requested resource type, or ResourceAuto
	ContentType  string       // declared media type, optional
	Body         io.Reader    `json:"-"`
}

// Asset is an object which has been durably stored by the gateway.
type Asset struct {
	PublicID     string       `json:"public_id"`
	URL          string       `json:"url"`
	Name         string       `json:"name,omitempty"`
	Folder       string       `json:"folder,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ContentType  string       `json:"type,omitempty"`
	Size         int64        `json:"size"`
	ETag         string       `json:"etag,omitempty"`
	ModTime      time.Time    `json:"modtime,omitzero"`
}

// Part is one file received in a multipart request, already read into
// memory by the transport layer.
type Part struct {
	Name        string `json:"name"`
	ContentType string `json:"type,omitempty"`
	Size        int64  `json:"size"`
	Body        []byte `json:"-"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r UploadRequest) String() string {
	return types.Stringify(r)
}

func (a Asset) String() string {
	return types.Stringify(a)
}

func (p Part) String() string {
	return types.Stringify(p)
}
