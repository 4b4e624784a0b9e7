package schema

import "errors"

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	// ErrEmptyBatch is returned when zero files are submitted to an
	// operation which requires at least one. No gateway call is made.
	ErrEmptyBatch = errors.New("no files uploaded")

	// ErrGateway wraps any failure reported by the remote storage gateway.
	ErrGateway = errors.New("gateway error")

	// ErrTransport wraps a failure to reach the upload server.
	ErrTransport = errors.New("transport error")

	// ErrInvalidResource is returned when content does not match the
	// requested resource type, for example a PDF uploaded as an image.
	ErrInvalidResource = errors.New("invalid resource")
)
