package httphandler

import (
	"io"
	"net/http"
	"path"
	"sync"

	// Packages
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// sseObserver forwards batch notifications to an event stream. Tasks
// complete concurrently, so writes are serialised.
type sseObserver struct {
	sync.Mutex
	write func(name string, v any)
}

var _ manager.Observer = (*sseObserver)(nil)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /upload
// POST stores a single image from the "file" form field.
func UploadHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/upload", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadSingle(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Upload one image using multipart/form-data (field name: \"file\")",
			},
		})
}

// Path: /multiple-upload
// POST stores every file in the "files" form field as one batch. When the
// client accepts text/event-stream, per-file progress is streamed.
func MultipleUploadHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/multiple-upload", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = uploadMultiple(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Upload up to five documents using multipart/form-data (field name: \"files\", repeatable)",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func uploadSingle(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	route, ok := mgr.Route(manager.RouteUpload)
	if !ok {
		return httpresponse.Error(w, httpresponse.ErrNotFound.With(manager.RouteUpload))
	}

	// Read the form
	var form struct {
		Files []types.File `json:"file"`
	}
	if err := httprequest.Read(r, &form); err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}
	defer closeFiles(form.Files)
	if len(form.Files) == 0 {
		return writeError(w, r, http.StatusBadRequest, schema.MessageNoFile)
	}

	// Read and validate
	parts, err := readParts(form.Files, route.Policy.MaxFileSize)
	if err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}
	if err := mgr.Validate(manager.RouteUpload, parts); err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}

	// Store
	asset, err := mgr.UploadSingle(r.Context(), manager.RouteUpload, &parts[0])
	if err != nil {
		return writeError(w, r, http.StatusInternalServerError, err.Error())
	}

	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.UploadResponse{
		Success:  true,
		Message:  schema.MessageImageUploaded,
		URL:      asset.URL,
		PublicID: asset.PublicID,
	})
}

func uploadMultiple(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	route, ok := mgr.Route(manager.RouteMultipleUpload)
	if !ok {
		return httpresponse.Error(w, httpresponse.ErrNotFound.With(manager.RouteMultipleUpload))
	}

	// Read the form
	var form struct {
		Files []types.File `json:"files"`
	}
	if err := httprequest.Read(r, &form); err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}
	defer closeFiles(form.Files)
	if len(form.Files) == 0 {
		return writeError(w, r, http.StatusBadRequest, schema.MessageNoFiles)
	}

	// The count gate runs before any part is buffered
	if len(form.Files) > route.Policy.MaxFileCount {
		_, err := route.Policy.ValidateBatch(policy.Totals{}, make([]policy.Candidate, len(form.Files)))
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}

	// Read and validate
	parts, err := readParts(form.Files, route.Policy.MaxFileSize)
	if err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}
	if err := mgr.Validate(manager.RouteMultipleUpload, parts); err != nil {
		return writeError(w, r, http.StatusBadRequest, err.Error())
	}

	// Branch to the streaming path if the client accepts text/event-stream
	if accept, _ := types.AcceptContentType(r); accept == types.ContentTypeTextStream {
		return uploadMultipleSSE(w, r, mgr, parts)
	}

	// Store the batch
	result, err := mgr.UploadBatch(r.Context(), manager.RouteMultipleUpload, parts, nil)
	if err != nil {
		return writeError(w, r, http.StatusInternalServerError, err.Error())
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	return httpresponse.JSON(w, status, httprequest.Indent(r), result.Response())
}

// uploadMultipleSSE stores a validated batch and streams progress events.
//
// Event sequence:
//
//	start    once, before any file is sent; payload: schema.UploadStart
//	progress written==0 when a file starts, then every 64 KiB; payload: schema.UploadProgress
//	complete after each file is stored; payload: schema.UploadComplete
//	error    after each file which could not be stored; payload: schema.UploadError
//	done     once all files have settled; payload: schema.UploadDone
func uploadMultipleSSE(w http.ResponseWriter, r *http.Request, mgr *manager.Manager, parts []schema.Part) error {
	// Open the stream. This commits 200 OK.
	stream := httpresponse.NewTextStream(w)
	observer := new(sseObserver)
	observer.write = func(name string, v any) {
		observer.Lock()
		defer observer.Unlock()
		stream.Write(name, v)
	}

	var total int64
	for _, part := range parts {
		total += part.Size
	}
	observer.write(schema.UploadStartEvent, schema.UploadStart{Files: len(parts), Bytes: total})

	result, err := mgr.UploadBatch(r.Context(), manager.RouteMultipleUpload, parts, observer)
	if err != nil {
		observer.write(schema.UploadDoneEvent, schema.UploadDone{MultipleUploadResponse: schema.MultipleUploadResponse{
			Message: schema.MessageUploadFailed,
			Error:   err.Error(),
		}})
	} else {
		observer.write(schema.UploadDoneEvent, schema.UploadDone{MultipleUploadResponse: result.Response()})
	}
	return stream.Close()
}

func (o *sseObserver) Progress(task *manager.Task, written int64) {
	o.write(schema.UploadProgressEvent, schema.UploadProgress{
		Index:   task.Index,
		Name:    task.Name,
		Written: written,
		Bytes:   task.Size,
	})
}

func (o *sseObserver) Complete(task *manager.Task) {
	if task.Err != nil {
		o.write(schema.UploadErrorEvent, schema.UploadError{
			Index:   task.Index,
			Name:    task.Name,
			Message: task.Err.Error(),
		})
		return
	}
	o.write(schema.UploadCompleteEvent, schema.UploadComplete{
		Index: task.Index,
		Name:  task.Name,
		UploadedFile: schema.UploadedFile{
			URL:      task.Result.URL,
			PublicID: task.Result.PublicID,
		},
	})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - HELPER FUNCTIONS

// readParts buffers each file, reading at most limit+1 bytes so that an
// oversized file is rejected by the size check without being read in full.
func readParts(files []types.File, limit policy.ByteSize) ([]schema.Part, error) {
	parts := make([]schema.Part, 0, len(files))
	for _, f := range files {
		data, err := io.ReadAll(io.LimitReader(f.Body, int64(limit)+1))
		if err != nil {
			return nil, err
		}
		contentType := f.ContentType
		if contentType == "" && f.Header != nil {
			contentType = f.Header.Get(types.ContentTypeHeader)
		}
		parts = append(parts, schema.Part{
			Name:        path.Base(f.Path),
			ContentType: contentType,
			Size:        int64(len(data)),
			Body:        data,
		})
	}
	return parts, nil
}

func closeFiles(files []types.File) {
	for _, f := range files {
		if f.Body != nil {
			f.Body.Close()
		}
	}
}

// writeError writes a JSON error body with the given status
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) error {
	return httpresponse.JSON(w, status, httprequest.Indent(r), schema.ErrorResponse{Error: message})
}
