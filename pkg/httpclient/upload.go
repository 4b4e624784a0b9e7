package httpclient

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/textproto"
	"path"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// wellKnownMIME maps file extensions that Go's mime package may not know about
// to their canonical MIME type.
var wellKnownMIME = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".rtf":  "application/rtf",
	".csv":  "text/csv",
	".zip":  "application/zip",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
}

// MIMEByExt returns the MIME type for a file extension, consulting wellKnownMIME
// first and then the system MIME database.
func MIMEByExt(ext string) string {
	if ct, ok := wellKnownMIME[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

///////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadOpt is a functional option for Upload and UploadMultiple.
type UploadOpt func(*uploadOpts) error

type uploadOpts struct {
	progress func(index, count int, name string, written, bytes int64)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithProgress sets a callback that is invoked as each file body is sent.
// index is the 0-based file position; count is the total number of files in
// the request. written and bytes are the per-file byte counters, and bytes is
// zero when the file size is unknown.
func WithProgress(fn func(index, count int, name string, written, bytes int64)) UploadOpt {
	return func(o *uploadOpts) error {
		o.progress = fn
		return nil
	}
}

// Open opens a file from fsys for upload. The content type is derived from
// the extension, falling back to sniffing the first 512 bytes. The caller
// must close the returned body.
func Open(fsys fs.FS, name string) (types.File, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return types.File{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return types.File{}, err
	} else if info.IsDir() {
		f.Close()
		return types.File{}, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	var body io.ReadCloser = f
	ct := MIMEByExt(path.Ext(name))
	if ct == "" || ct == types.ContentTypeBinary {
		var buf [512]byte
		n, _ := io.ReadFull(f, buf[:])
		if sniffed := http.DetectContentType(buf[:n]); sniffed != types.ContentTypeBinary {
			ct = sniffed
		}
		// Stitch the peeked bytes back onto the front of the reader,
		// keeping the original file as the Closer
		body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf[:n]), f), f}
	}

	h := textproto.MIMEHeader{}
	if sz := info.Size(); sz > 0 {
		h.Set(types.ContentLengthHeader, strconv.FormatInt(sz, 10))
	}
	return types.File{
		Path:        path.Base(name),
		Body:        body,
		ContentType: ct,
		Header:      h,
	}, nil
}

// Upload sends a single image to the upload endpoint. The file body is
// closed when the request completes.
func (c *Client) Upload(ctx context.Context, file types.File, opts ...UploadOpt) (*schema.UploadResponse, error) {
	o, err := applyUploadOpts(opts)
	if err != nil {
		return nil, err
	}
	files := o.wrap([]types.File{file})
	defer closeFiles(files)

	upload := struct {
		Files []types.File `json:"file"`
	}{Files: files}
	payload, err := client.NewStreamingMultipartRequest(&upload, types.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	var response schema.UploadResponse
	if err := c.DoWithContext(ctx, payload, &response,
		client.OptPath("upload"),
		client.OptNoTimeout(),
	); err != nil {
		return nil, transportErr(err)
	}
	return &response, nil
}

// UploadMultiple sends files to the multiple-upload endpoint as a single
// streaming multipart POST. The file bodies are closed when the request
// completes.
func (c *Client) UploadMultiple(ctx context.Context, files []types.File, opts ...UploadOpt) (*schema.MultipleUploadResponse, error) {
	if len(files) == 0 {
		return nil, schema.ErrEmptyBatch
	}
	o, err := applyUploadOpts(opts)
	if err != nil {
		return nil, err
	}
	files = o.wrap(files)
	defer closeFiles(files)

	upload := struct {
		Files []types.File `json:"files"`
	}{Files: files}
	payload, err := client.NewStreamingMultipartRequest(&upload, types.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	var response schema.MultipleUploadResponse
	if err := c.DoWithContext(ctx, payload, &response,
		client.OptPath("multiple-upload"),
		client.OptReqHeader("X-Upload-Count", strconv.Itoa(len(files))),
		client.OptNoTimeout(),
	); err != nil {
		return nil, transportErr(err)
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE HELPERS

func applyUploadOpts(opts []UploadOpt) (*uploadOpts, error) {
	o := new(uploadOpts)
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// wrap returns a copy of files with progress reporting bodies
func (o *uploadOpts) wrap(files []types.File) []types.File {
	if o.progress == nil {
		return files
	}
	result := make([]types.File, len(files))
	for i, f := range files {
		var total int64
		if f.Header != nil {
			total, _ = strconv.ParseInt(f.Header.Get(types.ContentLengthHeader), 10, 64)
		}
		name := f.Path
		f.Body = newUploadProgressReadCloser(f.Body, total, func(written, bytes int64) {
			o.progress(i, len(files), name, written, bytes)
		})
		result[i] = f
	}
	return result
}

func closeFiles(files []types.File) {
	for _, f := range files {
		if f.Body != nil {
			f.Body.Close()
		}
	}
}

type uploadProgressReadCloser struct {
	r        io.ReadCloser
	total    int64
	written  int64
	lastEmit int64
	cb       func(written, total int64)
}

func newUploadProgressReadCloser(r io.ReadCloser, total int64, cb func(written, total int64)) io.ReadCloser {
	return &uploadProgressReadCloser{
		r:     r,
		total: total,
		cb:    cb,
	}
}

func (r *uploadProgressReadCloser) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.written += int64(n)
		if r.written-r.lastEmit >= 64*1024 || (r.total > 0 && r.written >= r.total) {
			r.lastEmit = r.written
			r.cb(r.written, r.total)
		}
	}
	if err == io.EOF && r.written > r.lastEmit {
		r.lastEmit = r.written
		r.cb(r.written, r.total)
	}
	return n, err
}

func (r *uploadProgressReadCloser) Close() error {
	return r.r.Close()
}
