package httphandler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	// Packages
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// SINGLE UPLOAD

func Test_uploadSingle(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	req := newMultipartRequest(t, "/api/upload", "file", [][2]string{{"logo.png", string(pngBytes)}}, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.UploadResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if resp.Message != schema.MessageImageUploaded {
		t.Errorf("message: want %q, got %q", schema.MessageImageUploaded, resp.Message)
	}
	if !strings.HasPrefix(resp.PublicID, "images/") {
		t.Errorf("public id: want images/ prefix, got %q", resp.PublicID)
	}
	if !strings.HasSuffix(resp.URL, resp.PublicID) {
		t.Errorf("url %q does not end with public id %q", resp.URL, resp.PublicID)
	}
}

func Test_uploadSingle_rejected(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	tests := []struct {
		name  string
		files [][2]string
		want  string
	}{
		{"no file", nil, schema.MessageNoFile},
		{"wrong type", [][2]string{{"anim.gif", "GIF89a"}}, "Unsupported image format! Only JPG, JPEG, and PNG are allowed."},
		{"too large", [][2]string{{"big.png", strings.Repeat("x", int(5*policy.MiB)+1)}}, "File size exceeds"},
		{"two files", [][2]string{{"a.png", string(pngBytes)}, {"b.png", string(pngBytes)}}, "Maximum 1 files allowed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newMultipartRequest(t, "/api/upload", "file", tc.files, nil)
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, req)

			if rw.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rw.Code, rw.Body.String())
			}
			var resp schema.ErrorResponse
			if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !strings.HasPrefix(resp.Error, tc.want) {
				t.Errorf("error: want prefix %q, got %q", tc.want, resp.Error)
			}
		})
	}
}

func Test_uploadSingle_gatewayError(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	// Passes the extension check, but the content is not an image
	req := newMultipartRequest(t, "/api/upload", "file", [][2]string{{"fake.png", pdfBytes}}, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.ErrorResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

func Test_uploadSingle_methodNotAllowed(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	for _, path := range []string{"/api/upload", "/api/multiple-upload"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, rw.Code)
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// MULTIPLE UPLOAD

func Test_uploadMultiple(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	names := []string{"a.pdf", "b.pdf", "c.pdf"}
	files := make([][2]string, len(names))
	for i, name := range names {
		files[i] = [2]string{name, pdfBytes}
	}
	req := newMultipartRequest(t, "/api/multiple-upload", "files", files, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.MultipleUploadResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(resp.Files) != len(names) {
		t.Fatalf("expected %d files, got %d", len(names), len(resp.Files))
	}
	seen := map[string]bool{}
	for _, f := range resp.Files {
		if !strings.HasPrefix(f.PublicID, "invoices/") {
			t.Errorf("public id: want invoices/ prefix, got %q", f.PublicID)
		}
		if seen[f.PublicID] {
			t.Errorf("duplicate public id %q", f.PublicID)
		}
		seen[f.PublicID] = true
	}
}

func Test_uploadMultiple_rejected(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	six := make([][2]string, 6)
	for i := range six {
		six[i] = [2]string{fmt.Sprintf("%d.pdf", i), pdfBytes}
	}

	tests := []struct {
		name  string
		files [][2]string
		want  string
	}{
		{"no files", nil, schema.MessageNoFiles},
		{"too many", six, "Maximum 5 files allowed"},
		{"one bad type", [][2]string{{"a.pdf", pdfBytes}, {"b.docx", "PK"}, {"c.exe", "MZ"}}, "Unsupported document format! Only PDF, DOC, and DOCX are allowed."},
		{"too large", [][2]string{{"a.pdf", pdfBytes}, {"big.pdf", strings.Repeat("x", int(10*policy.MiB)+1)}}, "File size exceeds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newMultipartRequest(t, "/api/multiple-upload", "files", tc.files, nil)
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, req)

			if rw.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rw.Code, rw.Body.String())
			}
			var resp schema.ErrorResponse
			if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !strings.HasPrefix(resp.Error, tc.want) {
				t.Errorf("error: want prefix %q, got %q", tc.want, resp.Error)
			}
		})
	}
}

func Test_uploadMultiple_wrongField(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	req := newMultipartRequest(t, "/api/multiple-upload", "file", [][2]string{{"a.pdf", pdfBytes}}, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rw.Code, rw.Body.String())
	}
}

// imageOnlyRoute accepts documents by extension but asks the gateway to
// store them as images, so that any PDF fails at the gateway
func imageOnlyRoute(failure manager.Failure) manager.Opt {
	return manager.WithRoute(manager.RouteMultipleUpload, manager.Route{
		Policy:       policy.Document().WithMaxFileSize(policy.MiB),
		Folder:       "invoices",
		ResourceType: schema.ResourceImage,
		Failure:      failure,
	})
}

func Test_uploadMultiple_gatewayFailure(t *testing.T) {
	mux := serveMux(t, newTestManager(t, imageOnlyRoute(manager.FailAll)))

	req := newMultipartRequest(t, "/api/multiple-upload", "files", [][2]string{{"a.pdf", pdfBytes}, {"b.pdf", pdfBytes}}, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.MultipleUploadResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Error("expected failure")
	}
	if resp.Message != schema.MessageUploadFailed {
		t.Errorf("message: want %q, got %q", schema.MessageUploadFailed, resp.Message)
	}
	if resp.Error == "" {
		t.Error("expected an error detail")
	}
	if len(resp.Files) != 0 {
		t.Errorf("expected no files, got %d", len(resp.Files))
	}
}

func Test_uploadMultiple_partial(t *testing.T) {
	mux := serveMux(t, newTestManager(t, imageOnlyRoute(manager.FailPartial)))

	// The .doc is really a PNG, so it is the only file which is stored
	files := [][2]string{{"a.pdf", pdfBytes}, {"scan.doc", string(pngBytes)}, {"c.pdf", pdfBytes}}
	req := newMultipartRequest(t, "/api/multiple-upload", "files", files, nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp schema.MultipleUploadResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected partial success")
	}
	if len(resp.Files) != 1 {
		t.Errorf("expected 1 stored file, got %d", len(resp.Files))
	}
	if len(resp.Failed) != 2 {
		t.Fatalf("expected 2 failed files, got %d", len(resp.Failed))
	}
	if resp.Failed[0].Index != 0 || resp.Failed[1].Index != 2 {
		t.Errorf("failed indexes: want [0 2], got [%d %d]", resp.Failed[0].Index, resp.Failed[1].Index)
	}
}

///////////////////////////////////////////////////////////////////////////////
// POLICY

func Test_policyGet(t *testing.T) {
	mux := serveMux(t, newTestManager(t))

	req := httptest.NewRequest(http.MethodGet, "/api/policy", nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp map[string]policy.Policy
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p, ok := resp[manager.RouteUpload]; !ok || p.Name != policy.ImagePolicy || p.MaxFileSize != 5*policy.MiB {
		t.Errorf("unexpected upload policy: %+v", p)
	}
	if p, ok := resp[manager.RouteMultipleUpload]; !ok || p.MaxFileCount != 5 {
		t.Errorf("unexpected multiple-upload policy: %+v", p)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/policy", nil)
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rw.Code)
	}
}
