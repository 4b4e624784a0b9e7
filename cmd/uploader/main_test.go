package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	// Packages
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	session "github.com/mutablelogic/go-uploader/pkg/session"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func Test_routes(t *testing.T) {
	assert := assert.New(t)

	cmd := RunServerCommand{UploadPolicy: policy.ImagePolicy, MultiplePolicy: policy.GenericPolicy, Partial: true}
	routes, err := cmd.routes()
	require.NoError(t, err)
	assert.Equal(policy.ImagePolicy, routes[manager.RouteUpload].Policy.Name)
	assert.Equal(manager.FailAll, routes[manager.RouteUpload].Failure)
	assert.Equal(policy.GenericPolicy, routes[manager.RouteMultipleUpload].Policy.Name)
	assert.Equal(manager.FailPartial, routes[manager.RouteMultipleUpload].Failure)
	assert.Equal("invoices", routes[manager.RouteMultipleUpload].Folder)

	// Policies from a file
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - name: receipts
    match: extension
    allowed: [pdf]
    maxFileSize: 1MB
    maxFileCount: 3
`), 0o644))
	cmd = RunServerCommand{Policies: path, UploadPolicy: policy.ImagePolicy, MultiplePolicy: "receipts"}
	routes, err = cmd.routes()
	require.NoError(t, err)
	assert.Equal(3, routes[manager.RouteMultipleUpload].Policy.MaxFileCount)
	assert.Equal(manager.FailAll, routes[manager.RouteMultipleUpload].Failure)

	cmd.MultiplePolicy = "missing"
	_, err = cmd.routes()
	assert.Error(err)
}

func Test_clientEndpoint(t *testing.T) {
	assert := assert.New(t)

	var app Globals
	for addr, want := range map[string]string{
		":8080":           "http://localhost:8080/api",
		"example.com:443": "https://example.com:443/api",
		"[::1]:80":        "http://[::1]:80/api",
	} {
		app.HTTP.Addr, app.HTTP.Prefix = addr, "/api"
		endpoint, err := app.clientEndpoint()
		if assert.NoError(err, addr) {
			assert.Equal(want, endpoint, addr)
		}
	}
	app.HTTP.Addr = "nohost"
	_, err := app.clientEndpoint()
	assert.Error(err)
}

func Test_requestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := requestLogger(logger)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	rw := httptest.NewRecorder()
	handler(rw, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	assert.Equal(t, http.StatusTeapot, rw.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/api/policy")
	assert.Contains(t, buf.String(), "bytes_out=15")
}

func Test_uploading(t *testing.T) {
	assert := assert.New(t)
	n, pct := uploading(session.Snapshot{Candidates: []session.Candidate{
		{State: session.StateUploading, Size: 100, Progress: 50},
		{State: session.StateComplete, Size: 100, Progress: 100},
		{State: session.StateRejected, Size: 1000},
	}})
	assert.Equal(1, n)
	assert.Equal(75, pct)

	assert.Equal("1.5 KB", status(session.Candidate{State: session.StateComplete, Size: 1536}))
	assert.Equal("skip", status(session.Candidate{State: session.StateRejected}))
	assert.Equal("failed", status(session.Candidate{State: session.StateError}))
}

func Test_sessionPolicy(t *testing.T) {
	assert := assert.New(t)

	// One request per file, so the per-request count does not cap the selection
	p := sessionPolicy(policy.Image().WithMaxBatchSize(policy.MiB), session.ModeSingle, 3)
	assert.Equal(3, p.MaxFileCount)
	assert.Zero(p.MaxBatchSize)
	candidates := []policy.Candidate{
		{Name: "a.png", MediaType: "image/png", Size: int64(policy.MiB)},
		{Name: "b.png", MediaType: "image/png", Size: int64(policy.MiB)},
		{Name: "c.png", MediaType: "image/png", Size: int64(policy.MiB)},
	}
	results, err := p.ValidateBatch(policy.Totals{}, candidates)
	assert.NoError(err)
	for _, err := range results {
		assert.NoError(err)
	}

	// A single file keeps the route's own limit
	assert.Equal(1, sessionPolicy(policy.Image(), session.ModeSingle, 1).MaxFileCount)

	// The multiple-file route already limits the whole selection
	batch := sessionPolicy(policy.Document(), session.ModeBatch, 10)
	assert.Equal(policy.Document().MaxFileCount, batch.MaxFileCount)
	_, err = batch.ValidateBatch(policy.Totals{}, make([]policy.Candidate, 10))
	assert.Equal(policy.ReasonCount, policy.ReasonOf(err))
}
