package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	// Packages
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	session "github.com/mutablelogic/go-uploader/pkg/session"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type UploadCommands struct {
	Upload   UploadCommand   `cmd:"" group:"CLIENT" help:"Upload files"`
	Get      GetCommand      `cmd:"" group:"CLIENT" help:"Download a stored file"`
	Delete   DeleteCommand   `cmd:"" group:"CLIENT" help:"Delete a stored file"`
	Policies PoliciesCommand `cmd:"" group:"CLIENT" help:"Show intake policies"`
}

type UploadCommand struct {
	Files       []string `arg:"" type:"existingfile" help:"Files to upload"`
	Batch       bool     `name:"batch" short:"b" help:"Send all files in one request to the multiple-file endpoint"`
	Concurrency int      `name:"concurrency" default:"4" help:"Requests in flight when files are sent one by one"`
}

type GetCommand struct {
	ID     string `arg:"" name:"id" help:"Public id of the stored file"`
	Output string `name:"output" short:"o" help:"Write to file instead of stdout"`
}

type DeleteCommand struct {
	ID string `arg:"" name:"id" help:"Public id of the stored file"`
}

type PoliciesCommand struct {
	File string `name:"file" type:"existingfile" help:"Check a local YAML policy file instead of asking the server" optional:""`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cmd *UploadCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}

	// Validate with the server's policy for the endpoint in use
	policies, err := c.Policies(ctx.ctx)
	if err != nil {
		return err
	}
	route, mode := manager.RouteUpload, session.ModeSingle
	if cmd.Batch {
		route, mode = manager.RouteMultipleUpload, session.ModeBatch
	}
	p, ok := policies[route]
	if !ok {
		return fmt.Errorf("server has no %q route", route)
	}
	p = sessionPolicy(p, mode, len(cmd.Files))

	s, err := session.New(c, p,
		session.WithMode(mode),
		session.WithConcurrency(cmd.Concurrency),
		session.WithLogger(ctx.logger),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	// Add files, one directory at a time
	var files []session.File
	for _, path := range cmd.Files {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		f, err := session.FromFS(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if _, err := s.AddFiles(files...); err != nil {
		return err
	}

	// Render progress until the session is closed
	progress, cancel := context.WithCancel(ctx.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		render(os.Stderr, s.Subscribe(progress))
	}()
	uploadErr := s.StartUpload(ctx.ctx)
	cancel()
	<-done

	if ctx.Debug {
		if err := prettyJSON(s.Snapshot()); err != nil {
			return err
		}
	}
	summary(os.Stderr, s.Snapshot())
	return uploadErr
}

func (cmd *GetCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	var out io.Writer = os.Stdout
	var outFile *os.File
	if cmd.Output != "" {
		outFile, err = os.Create(cmd.Output)
		if err != nil {
			return err
		}
		out = outFile
	}
	asset, err := c.ReadFile(ctx.ctx, cmd.ID, func(chunk []byte) error {
		_, err := out.Write(chunk)
		return err
	})
	if outFile != nil {
		outFile.Close()
		if err != nil {
			os.Remove(cmd.Output)
		}
	}
	if err == nil && ctx.Debug {
		ctx.logger.Debug("read", "asset", asset)
	}
	return err
}

func (cmd *DeleteCommand) Run(ctx *Globals) error {
	c, err := ctx.Client()
	if err != nil {
		return err
	}
	asset, err := c.DeleteFile(ctx.ctx, cmd.ID)
	if err != nil {
		return err
	}
	return prettyJSON(asset)
}

func (cmd *PoliciesCommand) Run(ctx *Globals) error {
	var policies map[string]policy.Policy
	if cmd.File != "" {
		var err error
		if policies, err = policy.LoadFile(cmd.File); err != nil {
			return err
		}
	} else {
		c, err := ctx.Client()
		if err != nil {
			return err
		}
		if policies, err = c.Policies(ctx.ctx); err != nil {
			return err
		}
	}
	if ctx.Debug {
		return prettyJSON(policies)
	}

	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOLICY\tMAX FILES\tMAX SIZE\tALLOWED")
	for _, name := range names {
		p := policies[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\n", name, p.Name, p.MaxFileCount, p.MaxFileSize, strings.Join(p.Allowed, ","))
	}
	return w.Flush()
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// sessionPolicy returns the policy for a session sending n files. The
// single-file route limits each request, so one file at a time may go
// through any number of requests.
func sessionPolicy(p policy.Policy, mode session.Mode, n int) policy.Policy {
	if mode != session.ModeSingle {
		return p
	}
	return p.WithMaxFileCount(max(p.MaxFileCount, n)).WithMaxBatchSize(0)
}

func prettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
