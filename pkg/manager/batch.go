package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Status is the state of one file within a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Task is one file within a batch. Once Status leaves StatusPending exactly
// one of Result and Err is set.
type Task struct {
	Index      int
	Name       string
	Size       int64
	Status     Status
	Result     *schema.Asset
	Err        error
	RolledBack bool // the stored file was deleted after the batch failed
}

// BatchResult aggregates the tasks of one batch in submission order.
type BatchResult struct {
	Tasks   []*Task
	Success bool
	Err     error
}

// Observer receives notifications as files are stored. Methods may be
// called concurrently from different tasks.
type Observer interface {
	// Progress is called when a file starts, with written == 0, and then
	// periodically as bytes are sent to the gateway.
	Progress(task *Task, written int64)

	// Complete is called once per file, after its status has been set.
	Complete(task *Task)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate applies a route's intake policy to the parts of a request. It
// returns a *policy.Error for the whole batch, or for the first rejected
// file in submission order.
func (manager *Manager) Validate(name string, parts []schema.Part) error {
	route, ok := manager.routes[name]
	if !ok {
		return httpresponse.ErrNotFound.Withf("no route named %q", name)
	}
	candidates := make([]policy.Candidate, len(parts))
	for i, part := range parts {
		candidates[i] = policy.Candidate{Name: part.Name, MediaType: part.ContentType, Size: part.Size}
	}
	results, err := route.Policy.ValidateBatch(policy.Totals{}, candidates)
	if err != nil {
		return err
	}
	for _, err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}

// UploadBatch sends every part to the gateway concurrently and waits for
// all of them to settle. A failing file never cancels its siblings. The
// returned error is set only when the batch could not be attempted; failures
// of individual files are reported in the BatchResult.
func (manager *Manager) UploadBatch(ctx context.Context, name string, parts []schema.Part, observer Observer) (*BatchResult, error) {
	route, ok := manager.routes[name]
	if !ok {
		return nil, httpresponse.ErrNotFound.Withf("no route named %q", name)
	} else if len(parts) == 0 {
		return nil, schema.ErrEmptyBatch
	}

	// OTEL span
	var spanErr error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("UploadBatch"))
	defer func() { endFunc(spanErr) }()

	// Create the tasks
	result := &BatchResult{Tasks: make([]*Task, len(parts))}
	for i, part := range parts {
		result.Tasks[i] = &Task{Index: i, Name: part.Name, Size: part.Size, Status: StatusPending}
	}

	// Run the tasks. The group is not derived from the context, so one
	// failure does not cancel the others.
	var group errgroup.Group
	if manager.concurrency > 0 {
		group.SetLimit(manager.concurrency)
	}
	for i := range parts {
		task, part := result.Tasks[i], parts[i]
		group.Go(func() error {
			manager.run(child, route, task, part, observer)
			return nil
		})
	}
	group.Wait()

	// Aggregate
	manager.aggregate(child, route, result)
	if result.Err != nil {
		manager.logger.WarnContext(ctx, "batch failed", "route", name, "files", len(parts), "error", result.Err)
	} else {
		manager.logger.InfoContext(ctx, "batch stored", "route", name, "files", len(parts))
	}

	// A failed batch is recorded on the span but is not returned as an error
	if !result.Success {
		spanErr = result.Err
	}
	return result, nil
}

// UploadSingle stores one part. It has the same contract as UploadBatch
// with a batch of one, and returns the gateway error directly.
func (manager *Manager) UploadSingle(ctx context.Context, name string, part *schema.Part) (*schema.Asset, error) {
	if part == nil {
		return nil, schema.ErrEmptyBatch
	}
	result, err := manager.UploadBatch(ctx, name, []schema.Part{*part}, nil)
	if err != nil {
		return nil, err
	}
	task := result.Tasks[0]
	if task.Err != nil {
		return nil, task.Err
	}
	return task.Result, nil
}

// Succeeded returns the stored assets in submission order
func (r *BatchResult) Succeeded() []schema.Asset {
	result := make([]schema.Asset, 0, len(r.Tasks))
	for _, task := range r.Tasks {
		if task.Status == StatusSucceeded && task.Result != nil {
			result = append(result, *task.Result)
		}
	}
	return result
}

// Failed returns the failed tasks in submission order
func (r *BatchResult) Failed() []*Task {
	var result []*Task
	for _, task := range r.Tasks {
		if task.Status == StatusFailed {
			result = append(result, task)
		}
	}
	return result
}

// Response renders the result as the body of the multiple-file endpoint
func (r *BatchResult) Response() schema.MultipleUploadResponse {
	if !r.Success {
		response := schema.MultipleUploadResponse{Message: schema.MessageUploadFailed}
		if r.Err != nil {
			response.Error = r.Err.Error()
		}
		return response
	}
	response := schema.MultipleUploadResponse{Success: true, Files: []schema.UploadedFile{}}
	for _, asset := range r.Succeeded() {
		response.Files = append(response.Files, schema.UploadedFile{URL: asset.URL, PublicID: asset.PublicID})
	}
	for _, task := range r.Failed() {
		response.Failed = append(response.Failed, schema.FailedFile{Index: task.Index, Name: task.Name, Error: task.Err.Error()})
	}
	return response
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// run stores one part. Only the task itself is written.
func (manager *Manager) run(ctx context.Context, route Route, task *Task, part schema.Part, observer Observer) {
	var err error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("Upload"))
	defer func() { endFunc(err) }()

	// Bound the time for this file
	if manager.timeout > 0 {
		var cancel context.CancelFunc
		child, cancel = context.WithTimeout(child, manager.timeout)
		defer cancel()
	}

	// Report progress
	body := bytes.NewReader(part.Body)
	req := schema.UploadRequest{
		Name:         part.Name,
		Folder:       route.Folder,
		ResourceType: route.ResourceType,
		ContentType:  part.ContentType,
		Body:         body,
	}
	if observer != nil {
		observer.Progress(task, 0)
		req.Body = newProgressReader(body, func(written int64) {
			observer.Progress(task, written)
		})
	}

	// Store the file
	start := time.Now()
	asset, err := manager.gateway.Upload(child, req)
	if err != nil {
		task.Status, task.Err = StatusFailed, fmt.Errorf("%w: %s: %w", schema.ErrGateway, part.Name, err)
		manager.logger.WarnContext(ctx, "upload failed", "name", part.Name, "error", err)
	} else {
		task.Status, task.Result = StatusSucceeded, asset
		manager.bytes.Add(ctx, asset.Size)
		manager.logger.DebugContext(ctx, "upload stored", "name", part.Name, "public_id", asset.PublicID, "duration", time.Since(start))
	}
	manager.files.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(task.Status))))

	// Notify
	if observer != nil {
		observer.Complete(task)
	}
}

// aggregate sets the overall outcome of a batch, and rolls back stored
// files when enabled
func (manager *Manager) aggregate(ctx context.Context, route Route, result *BatchResult) {
	failed := result.Failed()
	switch {
	case len(failed) == 0:
		result.Success = true
	case route.Failure == FailPartial:
		result.Success = true
	default:
		// The first failure in submission order is reported
		result.Success = false
		result.Err = failed[0].Err
		if manager.rollback {
			result.Err = errors.Join(result.Err, manager.rollbackBatch(ctx, result))
		}
	}
}

func (manager *Manager) rollbackBatch(ctx context.Context, result *BatchResult) error {
	var errs error
	for _, task := range result.Tasks {
		if task.Status != StatusSucceeded || task.Result == nil {
			continue
		}
		if _, err := manager.gateway.Delete(context.WithoutCancel(ctx), task.Result.PublicID); err != nil {
			errs = errors.Join(errs, err)
		} else {
			task.RolledBack = true
		}
	}
	return errs
}
