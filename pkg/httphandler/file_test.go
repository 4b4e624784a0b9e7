package httphandler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// uploadFile stores one document through the multiple-upload endpoint and
// returns its public id
func uploadFile(t *testing.T, mux *http.ServeMux, name, content string) string {
	t.Helper()
	req := newMultipartRequest(t, "/api/multiple-upload", "files", [][2]string{{name, content}}, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.MultipleUploadResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("upload: expected 1 file, got %d", len(resp.Files))
	}
	return resp.Files[0].PublicID
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_fileGet(t *testing.T) {
	mux := serveMux(t, newTestManager(t))
	id := uploadFile(t, mux, "invoice.pdf", pdfBytes)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/file/"+id, nil)
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, req)

			resp := rw.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
				t.Errorf("Content-Type: want application/pdf, got %q", ct)
			}
			cd := resp.Header.Get("Content-Disposition")
			if !strings.Contains(cd, "inline") || !strings.Contains(cd, "invoice.pdf") {
				t.Errorf("unexpected Content-Disposition %q", cd)
			}
			if method == http.MethodGet && rw.Body.String() != pdfBytes {
				t.Errorf("body mismatch: got %q", rw.Body.String())
			}
		})
	}
}

func Test_fileGet_notFound(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/file/invoices/missing", nil)
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", method, rw.Code)
		}
	}
}

func Test_fileDelete(t *testing.T) {
	mux := serveMux(t, newTestManager(t))
	id := uploadFile(t, mux, "invoice.pdf", pdfBytes)

	req := httptest.NewRequest(http.MethodDelete, "/api/file/"+id, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var asset schema.Asset
	if err := json.Unmarshal(rw.Body.Bytes(), &asset); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if asset.PublicID != id {
		t.Errorf("public id: want %q, got %q", id, asset.PublicID)
	}

	// Gone
	req = httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rw.Code)
	}
}

func Test_file_methodNotAllowed(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	req := httptest.NewRequest(http.MethodPut, "/api/file/invoices/abc", strings.NewReader("x"))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rw.Code)
	}
}

///////////////////////////////////////////////////////////////////////////////
// CONDITIONAL REQUESTS

func Test_fileGet_ifModifiedSince(t *testing.T) {
	mux := serveMux(t, newTestManager(t))
	id := uploadFile(t, mux, "invoice.pdf", pdfBytes)

	// Future timestamp: not modified since
	req := httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(24*time.Hour).UTC().Format(http.TimeFormat))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rw.Code)
	}
	if rw.Body.Len() != 0 {
		t.Errorf("expected empty body for 304, got %d bytes", rw.Body.Len())
	}

	// Past timestamp: modified since
	req = httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(-24*time.Hour).UTC().Format(http.TimeFormat))
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rw.Code)
	}
}

func Test_fileGet_ifMatch(t *testing.T) {
	mux := serveMux(t, newTestManager(t))
	id := uploadFile(t, mux, "invoice.pdf", pdfBytes)

	// An unknown ETag cannot satisfy If-Match
	req := httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	req.Header.Set("If-Match", `"abc123"`)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusPreconditionFailed {
		t.Errorf("expected 412, got %d", rw.Code)
	}

	// Nor trigger If-None-Match
	req = httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	req.Header.Set("If-None-Match", `"abc123"`)
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rw.Code)
	}
}
