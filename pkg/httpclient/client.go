package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is an upload HTTP client that wraps the base HTTP client
// and provides typed methods for interacting with the upload API.
type Client struct {
	*client.Client
}

// ResponseError is an error status returned by the server. Message is the
// error text from the response body, and the error matches the
// httpresponse.Err for Status.
type ResponseError struct {
	Status  int
	Message string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload HTTP client with the given base URL and options.
// The url parameter should point to the upload API endpoint, e.g.
// "http://localhost:5000/api".
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	cl, err := client.New(append(opts, client.OptEndpoint(url))...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: cl}, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// transportErr marks failures to reach the server, and replaces an error
// status with the message the server put in the body
func transportErr(err error) error {
	var urlErr *url.Error
	var errResponse httpresponse.ErrResponse
	var status httpresponse.Err
	switch {
	case errors.Is(err, schema.ErrTransport):
		return err
	case errors.As(err, &urlErr):
		return fmt.Errorf("%w: %w", schema.ErrTransport, err)
	case errors.As(err, &errResponse):
		if errResponse.Reason != "" {
			return &ResponseError{Status: errResponse.Code, Message: errResponse.Reason}
		}
	case errors.As(err, &status):
		if message := bodyMessage(err.Error()); message != "" {
			return &ResponseError{Status: int(status), Message: message}
		}
	}
	return err
}

// bodyMessage returns the error text of a JSON error body appended to a
// status line, or an empty string
func bodyMessage(text string) string {
	i := strings.IndexByte(text, '{')
	if i < 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(text[i:]), &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

///////////////////////////////////////////////////////////////////////////////
// ERROR

func (e *ResponseError) Error() string {
	return e.Message
}

func (e *ResponseError) Unwrap() error {
	return httpresponse.Err(e.Status)
}
