package schema_test

import (
	"encoding/json"
	"testing"

	// Packages
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	assert "github.com/stretchr/testify/assert"
)

func Test_MultipleUploadResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		assert := assert.New(t)
		data, err := json.Marshal(schema.MultipleUploadResponse{
			Success: true,
			Files:   []schema.UploadedFile{{URL: "http://localhost/a.pdf", PublicID: "invoices/a.pdf"}},
		})
		assert.NoError(err)
		assert.JSONEq(`{"success":true,"files":[{"url":"http://localhost/a.pdf","publicId":"invoices/a.pdf"}]}`, string(data))
	})

	t.Run("PartialAllFailed", func(t *testing.T) {
		assert := assert.New(t)
		data, err := json.Marshal(schema.MultipleUploadResponse{
			Success: true,
			Failed:  []schema.FailedFile{{Index: 0, Name: "a.pdf", Error: "storage unavailable"}},
		})
		assert.NoError(err)
		assert.JSONEq(`{"success":true,"files":[],"failed":[{"index":0,"name":"a.pdf","error":"storage unavailable"}]}`, string(data))
	})

	t.Run("Failure", func(t *testing.T) {
		assert := assert.New(t)
		data, err := json.Marshal(schema.MultipleUploadResponse{
			Message: schema.MessageUploadFailed,
			Error:   "gateway error: b.pdf: storage unavailable",
		})
		assert.NoError(err)
		assert.JSONEq(`{"success":false,"message":"`+schema.MessageUploadFailed+`","error":"gateway error: b.pdf: storage unavailable"}`, string(data))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		assert := assert.New(t)
		var response schema.MultipleUploadResponse
		assert.NoError(json.Unmarshal([]byte(`{"success":true,"files":[]}`), &response))
		assert.True(response.Success)
		assert.NotNil(response.Files)
		assert.Empty(response.Files)
	})
}
