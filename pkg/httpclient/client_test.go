package httpclient_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	httpclient "github.com/mutablelogic/go-uploader/pkg/httpclient"
	httphandler "github.com/mutablelogic/go-uploader/pkg/httphandler"
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)

func newTestServer(t *testing.T, opts ...manager.Opt) *httpclient.Client {
	t.Helper()
	opts = append([]manager.Opt{manager.WithGatewayURL(context.Background(), "mem://assets")}, opts...)
	mgr, err := manager.New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("newTestServer: failed to create manager: %v", err)
	}
	mux := http.NewServeMux()
	for _, fn := range []func(*manager.Manager) (string, http.HandlerFunc, *openapi.PathItem){
		httphandler.UploadHandler,
		httphandler.MultipleUploadHandler,
		httphandler.FileHandler,
		httphandler.PolicyHandler,
	} {
		p, h, _ := fn(mgr)
		mux.HandleFunc("/api"+p, h)
	}
	srv := httptest.NewServer(mux)
	c, err := httpclient.New(srv.URL + "/api")
	if err != nil {
		srv.Close()
		mgr.Close()
		t.Fatalf("newTestServer: failed to create client: %v", err)
	}
	t.Cleanup(func() {
		srv.Close()
		mgr.Close()
	})
	return c
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"logo.png":          {Data: pngBytes},
		"invoice.pdf":       {Data: pdfBytes},
		"notes":             {Data: pdfBytes},
		"docs/contract.pdf": {Data: append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), 200*1024)...)},
		"virus.exe":         {Data: []byte("MZ")},
	}
}

///////////////////////////////////////////////////////////////////////////////
// OPEN

func Test_Open(t *testing.T) {
	assert := assert.New(t)
	fsys := testFS()

	f, err := httpclient.Open(fsys, "docs/contract.pdf")
	if assert.NoError(err) {
		defer f.Body.Close()
		assert.Equal("contract.pdf", f.Path)
		assert.Equal("application/pdf", f.ContentType)
		assert.Equal(strconv.Itoa(len(pdfBytes)+200*1024), f.Header.Get(types.ContentLengthHeader))
	}

	// No extension: content is sniffed, and the body is intact
	f, err = httpclient.Open(fsys, "notes")
	if assert.NoError(err) {
		assert.Equal("application/pdf", f.ContentType)
		data, err := io.ReadAll(f.Body)
		assert.NoError(err)
		assert.Equal(pdfBytes, data)
		f.Body.Close()
	}

	_, err = httpclient.Open(fsys, "missing.pdf")
	assert.Error(err)
	_, err = httpclient.Open(fsys, "docs")
	assert.Error(err)

	assert.Equal("application/vnd.openxmlformats-officedocument.wordprocessingml.document", httpclient.MIMEByExt(".docx"))
}

///////////////////////////////////////////////////////////////////////////////
// UPLOAD

func Test_Upload(t *testing.T) {
	assert := assert.New(t)
	c := newTestServer(t)

	f, err := httpclient.Open(testFS(), "logo.png")
	require.NoError(t, err)

	resp, err := c.Upload(context.Background(), f)
	if assert.NoError(err) {
		assert.True(resp.Success)
		assert.Equal(schema.MessageImageUploaded, resp.Message)
		assert.True(strings.HasPrefix(resp.PublicID, "images/"))
	}

	// Rejected by the server
	f, err = httpclient.Open(testFS(), "invoice.pdf")
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), f)
	assert.Error(err)
	assert.NotErrorIs(err, schema.ErrTransport)

	// The error carries the message from the body
	var responseErr *httpclient.ResponseError
	if assert.ErrorAs(err, &responseErr) {
		assert.Equal(http.StatusBadRequest, responseErr.Status)
		assert.Equal(policy.Image().TypeError, responseErr.Message)
		assert.EqualError(err, policy.Image().TypeError)
	}
	assert.ErrorIs(err, httpresponse.ErrBadRequest)
}

func Test_UploadMultiple(t *testing.T) {
	assert := assert.New(t)
	c := newTestServer(t)
	fsys := testFS()

	var files []types.File
	for _, name := range []string{"invoice.pdf", "docs/contract.pdf"} {
		f, err := httpclient.Open(fsys, name)
		require.NoError(t, err)
		files = append(files, f)
	}

	var mu sync.Mutex
	last := map[int]int64{}
	resp, err := c.UploadMultiple(context.Background(), files, httpclient.WithProgress(func(index, count int, name string, written, bytes int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(2, count)
		assert.GreaterOrEqual(written, last[index])
		last[index] = written
	}))
	if assert.NoError(err) {
		assert.True(resp.Success)
		assert.Len(resp.Files, 2)
	}
	assert.Equal(int64(len(pdfBytes)), last[0])
	assert.Equal(int64(len(pdfBytes)+200*1024), last[1])

	_, err = c.UploadMultiple(context.Background(), nil)
	assert.ErrorIs(err, schema.ErrEmptyBatch)
}

func Test_UploadMultipleRejected(t *testing.T) {
	c := newTestServer(t)
	fsys := testFS()

	var files []types.File
	for _, name := range []string{"invoice.pdf", "virus.exe"} {
		f, err := httpclient.Open(fsys, name)
		require.NoError(t, err)
		files = append(files, f)
	}
	_, err := c.UploadMultiple(context.Background(), files)
	assert.Error(t, err)
}

func Test_UploadTransportError(t *testing.T) {
	// Nothing is listening on this endpoint once the server is closed
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := httpclient.New(url + "/api")
	require.NoError(t, err)

	f, err := httpclient.Open(testFS(), "logo.png")
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), f)
	assert.ErrorIs(t, err, schema.ErrTransport)
}

///////////////////////////////////////////////////////////////////////////////
// FILES

func Test_ReadDeleteFile(t *testing.T) {
	assert := assert.New(t)
	c := newTestServer(t)

	f, err := httpclient.Open(testFS(), "invoice.pdf")
	require.NoError(t, err)
	resp, err := c.UploadMultiple(context.Background(), []types.File{f})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	id := resp.Files[0].PublicID

	// Read
	var buf bytes.Buffer
	asset, err := c.ReadFile(context.Background(), id, func(data []byte) error {
		_, err := buf.Write(data)
		return err
	})
	if assert.NoError(err) {
		assert.Equal(id, asset.PublicID)
		assert.Equal("invoice.pdf", asset.Name)
		assert.Equal("application/pdf", asset.ContentType)
		assert.Equal(int64(len(pdfBytes)), asset.Size)
		assert.Equal(pdfBytes, buf.Bytes())
	}

	// Callback errors abort the read
	sentinel := errors.New("stop")
	_, err = c.ReadFile(context.Background(), id, func([]byte) error { return sentinel })
	assert.ErrorIs(err, sentinel)

	// Delete
	deleted, err := c.DeleteFile(context.Background(), id)
	if assert.NoError(err) {
		assert.Equal(id, deleted.PublicID)
	}
	_, err = c.DeleteFile(context.Background(), id)
	assert.ErrorIs(err, httpresponse.ErrNotFound)
	assert.NotContains(err.Error(), "{")
}

func Test_Policies(t *testing.T) {
	assert := assert.New(t)
	c := newTestServer(t)

	policies, err := c.Policies(context.Background())
	if assert.NoError(err) {
		assert.Equal(policy.ImagePolicy, policies[manager.RouteUpload].Name)
		assert.Equal(policy.Document().Allowed, policies[manager.RouteMultipleUpload].Allowed)
		assert.Equal(10*policy.MiB, policies[manager.RouteMultipleUpload].MaxFileSize)
	}
}
