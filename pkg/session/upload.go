package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
	httpclient "github.com/mutablelogic/go-uploader/pkg/httpclient"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// StartUpload sends every queued candidate to the server and waits for the
// results. Each candidate ends up complete or in error; the returned error
// joins the failures, and is nil when every upload succeeded.
func (s *Session) StartUpload(ctx context.Context) error {
	// Move queued candidates to uploading in one transition
	prev, err := s.dispatch(updateAction{s.Snapshot().ids(StateQueued), func(c *Candidate) {
		if c.State == StateQueued {
			c.State = StateUploading
			c.Progress = 0
		}
	}})
	if err != nil {
		return err
	}
	var batch []Candidate
	for _, c := range prev.Candidates {
		if c.State == StateQueued {
			batch = append(batch, c)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	s.logger.DebugContext(ctx, "upload", "files", len(batch), "mode", s.mode)
	switch s.mode {
	case ModeBatch:
		return s.uploadBatch(ctx, batch)
	default:
		return s.uploadEach(ctx, batch)
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// uploadEach sends one request per candidate, with a bounded number in flight
func (s *Session) uploadEach(ctx context.Context, batch []Candidate) error {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	var result error
	for _, c := range batch {
		g.Go(func() error {
			if err := s.uploadOne(ctx, c); err != nil {
				mu.Lock()
				result = errors.Join(result, fmt.Errorf("%s: %w", c.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return result
}

func (s *Session) uploadOne(ctx context.Context, c Candidate) error {
	file, err := c.file.upload()
	if err != nil {
		s.fail(c, err)
		return err
	}
	resp, err := s.transport.Upload(ctx, file, httpclient.WithProgress(func(_, _ int, _ string, written, bytes int64) {
		s.progress(c, written, bytes)
	}))
	if err != nil {
		s.fail(c, err)
		return err
	}
	s.complete(c, resp.URL, resp.PublicID)
	return nil
}

// uploadBatch sends every candidate in one request. Results are matched to
// candidates by position.
func (s *Session) uploadBatch(ctx context.Context, batch []Candidate) error {
	var result error

	// Candidates which cannot be opened fail alone
	files := make([]types.File, 0, len(batch))
	sent := make([]Candidate, 0, len(batch))
	for _, c := range batch {
		file, err := c.file.upload()
		if err != nil {
			s.fail(c, err)
			result = errors.Join(result, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		files = append(files, file)
		sent = append(sent, c)
	}
	if len(files) == 0 {
		return result
	}

	resp, err := s.transport.UploadMultiple(ctx, files, httpclient.WithProgress(func(index, _ int, _ string, written, bytes int64) {
		if index >= 0 && index < len(sent) {
			s.progress(sent[index], written, bytes)
		}
	}))
	if err == nil && !resp.Success {
		err = errors.New(resp.Error)
	}
	if err != nil {
		for _, c := range sent {
			s.fail(c, err)
		}
		return errors.Join(result, err)
	}

	// Stored files are listed in submission order, without the failed ones
	failed := make(map[int]string, len(resp.Failed))
	for _, f := range resp.Failed {
		failed[f.Index] = f.Error
	}
	stored := resp.Files
	for i, c := range sent {
		if reason, ok := failed[i]; ok {
			err := errors.New(reason)
			s.fail(c, err)
			result = errors.Join(result, fmt.Errorf("%s: %w", c.Name, err))
		} else if len(stored) == 0 {
			err := fmt.Errorf("%w: missing from response", schema.ErrGateway)
			s.fail(c, err)
			result = errors.Join(result, fmt.Errorf("%s: %w", c.Name, err))
		} else {
			s.complete(c, stored[0].URL, stored[0].PublicID)
			stored = stored[1:]
		}
	}
	return result
}

// progress records bytes sent. Percentages only increase.
func (s *Session) progress(c Candidate, written, bytes int64) {
	if bytes <= 0 {
		bytes = c.Size
	}
	if bytes <= 0 {
		return
	}
	percent := int(min(100, written*100/bytes))
	s.dispatch(updateAction{[]string{c.ID}, func(c *Candidate) {
		if c.State == StateUploading && percent > c.Progress {
			c.Progress = percent
		}
	}})
}

// complete marks a candidate stored and releases its preview. Nothing
// changes if the candidate was removed in the meantime.
func (s *Session) complete(c Candidate, url, publicID string) {
	s.dispatch(updateAction{[]string{c.ID}, func(c *Candidate) {
		c.State = StateComplete
		c.Progress = 100
		c.URL = url
		c.PublicID = publicID
		c.Error = ""
		c.Preview = nil
	}})
	if err := c.Preview.Release(); err != nil {
		s.logger.Warn("preview", "name", c.Name, "error", err)
	}
	s.logger.Debug("complete", "name", c.Name, "public_id", publicID)
}

func (s *Session) fail(c Candidate, err error) {
	reason := Reason(err)
	s.dispatch(updateAction{[]string{c.ID}, func(c *Candidate) {
		c.State = StateError
		c.Error = reason
	}})
	s.logger.Debug("failed", "name", c.Name, "error", err)
}

// Reason returns a message for err suitable for showing next to a file.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Upload cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Upload timed out"
	case errors.Is(err, schema.ErrTransport):
		return "Upload failed: the server could not be reached"
	default:
		return err.Error()
	}
}

// ids returns the ids of candidates in the given state
func (s Snapshot) ids(state State) []string {
	var ids []string
	for _, c := range s.Candidates {
		if c.State == state {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
