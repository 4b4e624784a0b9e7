package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	// Packages
	uuid "github.com/google/uuid"
	types "github.com/mutablelogic/go-server/pkg/types"
	httpclient "github.com/mutablelogic/go-uploader/pkg/httpclient"
	media "github.com/mutablelogic/go-uploader/pkg/media"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport sends files to the upload server. *httpclient.Client
// implements it.
type Transport interface {
	Upload(context.Context, types.File, ...httpclient.UploadOpt) (*schema.UploadResponse, error)
	UploadMultiple(context.Context, []types.File, ...httpclient.UploadOpt) (*schema.MultipleUploadResponse, error)
	DeleteFile(context.Context, string) (*schema.Asset, error)
}

// Session holds the files a user has selected for one upload form, and
// moves each of them through validation and upload.
type Session struct {
	opts
	transport Transport
	policy    policy.Policy

	adding sync.Mutex // serializes AddFiles so batch limits hold
	mu     sync.Mutex
	state  Snapshot
	subs   map[chan Snapshot]struct{}
	done   chan struct{} // closed by Close
	closed bool
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	ErrClosed           = errors.New("session closed")
	ErrUnknownCandidate = errors.New("unknown candidate")
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a session which validates files against p and sends them with
// transport.
func New(transport Transport, p policy.Policy, opts ...Opt) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is nil")
	} else if err := p.Check(); err != nil {
		return nil, err
	}

	o, err := applyOpts(opts)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:      o,
		transport: transport,
		policy:    p,
		subs:      make(map[chan Snapshot]struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Close releases every remaining preview and ends all subscriptions.
// Uploads in progress are not cancelled, but their results are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	candidates := s.state.Candidates
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()

	var result error
	for _, c := range candidates {
		result = errors.Join(result, c.Preview.Release())
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Policy returns the policy files are validated against.
func (s *Session) Policy() policy.Policy {
	return s.policy
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel which receives the current state and then
// each later one. A slow reader sees only the most recent state. The channel
// is closed when ctx is done or the session is closed.
func (s *Session) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	ch <- s.state
	s.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// AddFiles validates files and adds them to the session, returning their
// ids in order. When the selection as a whole breaks the count or total
// size limit, nothing is added and a *policy.Error is returned. Otherwise
// each file is either queued or kept as rejected with its reason.
func (s *Session) AddFiles(files ...File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	s.adding.Lock()
	defer s.adding.Unlock()

	// Batch gates, against what is already in the session
	incoming := make([]policy.Candidate, len(files))
	for i, f := range files {
		incoming[i] = policy.Candidate{Name: f.Name, MediaType: f.MediaType, Size: f.Size}
	}
	if _, err := s.policy.ValidateBatch(s.Snapshot().Totals(), incoming); err != nil {
		return nil, err
	}

	// Add
	added := make(addAction, len(files))
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = uuid.NewString()
		added[i] = Candidate{
			ID:        ids[i],
			Name:      f.Name,
			MediaType: f.MediaType,
			Size:      f.Size,
			Kind:      media.Classify(f.MediaType, f.Name),
			Icon:      media.Icon(f.MediaType),
			State:     StateAdded,
			file:      f,
		}
	}
	if _, err := s.dispatch(added); err != nil {
		return nil, err
	}
	if _, err := s.dispatch(updateAction{ids, func(c *Candidate) {
		c.State = StateValidating
	}}); err != nil {
		return nil, err
	}

	// Validate each file, and make previews for the accepted ones
	reasons := make(map[string]string, len(files))
	previews := make(map[string]*Preview, len(files))
	for _, c := range added {
		if err := s.policy.Validate(c.policyCandidate()); err != nil {
			reasons[c.ID] = err.Error()
			s.logger.Debug("rejected", "name", c.Name, "reason", err)
		} else if preview := s.preview(c); preview != nil {
			previews[c.ID] = preview
		}
	}
	if _, err := s.dispatch(updateAction{ids, func(c *Candidate) {
		if reason, rejected := reasons[c.ID]; rejected {
			c.State = StateRejected
			c.Error = reason
		} else {
			c.State = StateQueued
			c.Preview = previews[c.ID]
		}
	}}); err != nil {
		for _, preview := range previews {
			preview.Release()
		}
		return nil, err
	}

	return ids, nil
}

// Remove drops a candidate and releases its preview. A candidate which was
// already stored is deleted from the server first, and is kept if that
// fails. An upload in flight is not cancelled; its result is ignored.
func (s *Session) Remove(ctx context.Context, id string) error {
	c, ok := s.Snapshot().Get(id)
	if !ok {
		return ErrUnknownCandidate
	}
	if c.State == StateComplete && c.PublicID != "" {
		if _, err := s.transport.DeleteFile(ctx, c.PublicID); err != nil {
			return err
		}
	}

	// The candidate may have moved on since it was read, so release
	// whichever preview the removed state holds as well
	prev, err := s.dispatch(removeAction(id))
	if err != nil {
		return err
	}
	if removed, ok := prev.Get(id); ok {
		removed.Preview.Release()
	}
	return c.Preview.Release()
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// dispatch applies a transition and publishes the new state, returning the
// state it replaced.
func (s *Session) dispatch(a action) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}

	prev := s.state
	s.state = Snapshot{
		Version:    prev.Version + 1,
		Candidates: a.reduce(prev.Candidates),
	}
	for ch := range s.subs {
		select {
		case ch <- s.state:
		default:
			// Replace the unread state
			select {
			case <-ch:
			default:
			}
			ch <- s.state
		}
	}
	return prev, nil
}

// preview returns a preview for a previewable candidate, or nil
func (s *Session) preview(c Candidate) *Preview {
	if s.previewDir == "" || !c.Kind.Previewable() {
		return nil
	}
	var onRelease func()
	if s.released != nil {
		id := c.ID
		onRelease = func() { s.released(id) }
	}
	preview, err := newPreview(s.previewDir, c.file, onRelease)
	if err != nil {
		s.logger.Warn("preview", "name", c.Name, "error", err)
		return nil
	}
	return preview
}
