package schema

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// SSE event names emitted during a streaming multiple-file upload.
	// Clients should switch on these names to drive per-file progress UIs.

	// UploadStartEvent is sent once, after intake validation has passed and
	// before any file is sent to the gateway. Payload: UploadStart
	UploadStartEvent = "start"

	// UploadProgressEvent is sent when a file starts (Written == 0) and then
	// each time the progress reader crosses a chunk boundary (~64 KiB).
	// Payload: UploadProgress
	UploadProgressEvent = "progress"

	// UploadCompleteEvent is sent after each file has been stored.
	// Files complete in any order. Payload: UploadComplete
	UploadCompleteEvent = "complete"

	// UploadErrorEvent is sent for each file which could not be stored.
	// Payload: UploadError
	UploadErrorEvent = "error"

	// UploadDoneEvent is sent once all files have settled, just before the
	// stream is closed. Payload: UploadDone
	UploadDoneEvent = "done"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadStart is the payload for UploadStartEvent.
type UploadStart struct {
	// Files is the number of files to be uploaded.
	Files int `json:"files"`

	// Bytes is the sum of the file sizes in bytes.
	Bytes int64 `json:"bytes"`
}

// UploadProgress is the payload for UploadProgressEvent.
type UploadProgress struct {
	// Index is the 0-based position of the file in the request.
	Index int `json:"index"`

	// Name is the original filename.
	Name string `json:"name"`

	// Written is the number of bytes sent to the gateway so far.
	Written int64 `json:"written"`

	// Bytes is the size of the file in bytes.
	Bytes int64 `json:"bytes"`
}

// UploadComplete is the payload for UploadCompleteEvent.
type UploadComplete struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	UploadedFile
}

// UploadError is the payload for UploadErrorEvent.
type UploadError struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// UploadDone is the payload for UploadDoneEvent. It carries the same
// aggregate as the non-streaming response.
type UploadDone struct {
	MultipleUploadResponse
}
