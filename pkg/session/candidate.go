package session

import (
	"io"
	"io/fs"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"strconv"
	"sync"
	"sync/atomic"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
	httpclient "github.com/mutablelogic/go-uploader/pkg/httpclient"
	media "github.com/mutablelogic/go-uploader/pkg/media"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// State is the position of a candidate in its lifecycle.
type State string

const (
	StateAdded      State = "added"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateQueued     State = "queued"
	StateUploading  State = "uploading"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// File is a local file offered to a session. Open is called once per
// upload attempt and when a preview is made.
type File struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// Candidate is one file in a session, as seen in a Snapshot. Candidates are
// values; a Snapshot never changes once published.
type Candidate struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	MediaType string     `json:"mediaType,omitempty"`
	Size      int64      `json:"size"`
	Kind      media.Kind `json:"kind"`
	Icon      string     `json:"icon"`
	State     State      `json:"state"`
	Error     string     `json:"error,omitempty"`
	Progress  int        `json:"progress"` // 0..100
	URL       string     `json:"url,omitempty"`
	PublicID  string     `json:"publicId,omitempty"`
	Preview   *Preview   `json:"-"`

	file File
}

// Preview is a local copy of a candidate's content used for display.
type Preview struct {
	path      string
	once      sync.Once
	released  atomic.Bool
	err       error
	onRelease func()
}

////////////////////////////////////////////////////////////////////////////////
// FILES

// FromFS returns a File for name in fsys. The media type comes from the
// extension, or is sniffed from the content when the extension is unknown.
func FromFS(fsys fs.FS, name string) (File, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return File{}, err
	} else if info.IsDir() {
		return File{}, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	mediaType := httpclient.MIMEByExt(path.Ext(name))
	if mediaType == "" {
		if mediaType, err = sniff(fsys, name); err != nil {
			return File{}, err
		}
	}
	return File{
		Name:      path.Base(name),
		MediaType: mediaType,
		Size:      info.Size(),
		Open: func() (io.ReadCloser, error) {
			return fsys.Open(name)
		},
	}, nil
}

func sniff(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var buf [512]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// upload returns the file as a multipart part. The caller closes the body.
func (f File) upload() (types.File, error) {
	body, err := f.Open()
	if err != nil {
		return types.File{}, err
	}
	file := types.File{
		Path:        f.Name,
		Body:        body,
		ContentType: f.MediaType,
	}
	if f.Size > 0 {
		file.Header = textproto.MIMEHeader{}
		file.Header.Set(types.ContentLengthHeader, strconv.FormatInt(f.Size, 10))
	}
	return file, nil
}

////////////////////////////////////////////////////////////////////////////////
// PREVIEW

func newPreview(dir string, f File, onRelease func()) (*Preview, error) {
	src, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "preview-*"+path.Ext(f.Name))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return nil, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return nil, err
	}
	return &Preview{path: dst.Name(), onRelease: onRelease}, nil
}

// Path returns the location of the preview file. It is empty once released.
func (p *Preview) Path() string {
	if p == nil || p.released.Load() {
		return ""
	}
	return p.path
}

// Released reports whether Release has been called.
func (p *Preview) Released() bool {
	return p == nil || p.released.Load()
}

// Release removes the preview file. Only the first call has any effect.
func (p *Preview) Release() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		p.released.Store(true)
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			p.err = err
		}
		if p.onRelease != nil {
			p.onRelease()
		}
	})
	return p.err
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c Candidate) policyCandidate() policy.Candidate {
	return policy.Candidate{Name: c.Name, MediaType: c.MediaType, Size: c.Size}
}

// counts reports whether the candidate occupies a slot against the
// session's count and size limits
func (c Candidate) counts() bool {
	return c.State != StateRejected
}
