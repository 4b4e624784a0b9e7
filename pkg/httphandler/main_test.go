package httphandler_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	// Packages
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	httphandler "github.com/mutablelogic/go-uploader/pkg/httphandler"
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	pdfBytes = "%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"
)

///////////////////////////////////////////////////////////////////////////////
// ROUTER

// muxRouter registers handlers on a ServeMux under a path prefix
type muxRouter struct {
	*http.ServeMux
	prefix string
}

func (m muxRouter) RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error {
	m.HandleFunc(m.prefix+path, handler)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// newTestManager returns a manager backed by an in-memory gateway
func newTestManager(t *testing.T, opts ...manager.Opt) *manager.Manager {
	t.Helper()
	opts = append([]manager.Opt{manager.WithGatewayURL(context.Background(), "mem://assets")}, opts...)
	mgr, err := manager.New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// serveMux registers all handlers under /api
func serveMux(t *testing.T, mgr *manager.Manager) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	if err := httphandler.RegisterHandlers(mgr, muxRouter{mux, "/api"}); err != nil {
		t.Fatalf("RegisterHandlers: %v", err)
	}
	return mux
}

// newMultipartRequest builds a POST request with one part per file in the
// named form field. Each entry in files is (filename, content) and the part
// content type is derived from the filename extension.
func newMultipartRequest(t *testing.T, url, field string, files [][2]string, extraHeaders map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f[0]))
		if ct := mime.TypeByExtension(filepath.Ext(f[0])); ct != "" {
			h.Set("Content-Type", ct)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write([]byte(f[1])); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	return req
}

// sseEvent holds one parsed Server-Sent Event.
type sseEvent struct {
	Name string
	Data string
}

// parseSSEEvents parses a text/event-stream body into a slice of sseEvents.
func parseSSEEvents(body string) []sseEvent {
	var events []sseEvent
	var name, data string

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if name != "" {
				events = append(events, sseEvent{Name: name, Data: data})
			}
			name, data = "", ""
		}
	}
	if name != "" {
		events = append(events, sseEvent{Name: name, Data: data})
	}
	return events
}

// sseEventsByName filters a slice keeping only events with the given name.
func sseEventsByName(events []sseEvent, name string) []sseEvent {
	var out []sseEvent
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
