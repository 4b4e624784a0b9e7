package schema

import (
	"encoding/json"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadResponse is returned from the single-file endpoint on success.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// UploadedFile is one entry in the files list of a MultipleUploadResponse.
type UploadedFile struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// FailedFile describes one file which could not be stored when partial
// success reporting is enabled.
type FailedFile struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MultipleUploadResponse is returned from the multiple-file endpoint. On
// success Files is always present, even when empty. On failure Success is
// false, Message and Error are set and Files is left out.
type MultipleUploadResponse struct {
	Success bool           `json:"success"`
	Files   []UploadedFile `json:"files"`
	Failed  []FailedFile   `json:"failed,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ErrorResponse is the body of a client or gateway error.
type ErrorResponse struct {
	Error string `json:"error"`
}

////////////////////////////////////////////////////////////////////////////////
// JSON

func (r MultipleUploadResponse) MarshalJSON() ([]byte, error) {
	type response MultipleUploadResponse
	if !r.Success {
		return json.Marshal(struct {
			response
			Files []UploadedFile `json:"files,omitempty"`
		}{response: response(r)})
	}
	if r.Files == nil {
		r.Files = []UploadedFile{}
	}
	return json.Marshal(response(r))
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r UploadResponse) String() string {
	return types.Stringify(r)
}

func (r MultipleUploadResponse) String() string {
	return types.Stringify(r)
}

func (r ErrorResponse) String() string {
	return types.Stringify(r)
}
