package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	// Packages
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	gateway "github.com/mutablelogic/go-uploader/pkg/gateway"
	httphandler "github.com/mutablelogic/go-uploader/pkg/httphandler"
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	policy "github.com/mutablelogic/go-uploader/pkg/policy"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
	version "github.com/mutablelogic/go-uploader/pkg/version"
	otel "go.opentelemetry.io/otel"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server RunServerCommand `cmd:"" name:"server" help:"Run HTTP server." group:"SERVER"`
}

type RunServerCommand struct {
	gateway.Config `embed:""`

	Policies       string        `name:"policies" env:"UPLOADER_POLICIES" type:"existingfile" help:"YAML file of intake policies" optional:""`
	UploadPolicy   string        `name:"upload-policy" default:"image" help:"Policy for single-file uploads"`
	MultiplePolicy string        `name:"multiple-policy" default:"document" help:"Policy for multiple-file uploads"`
	Concurrency    int           `name:"concurrency" default:"8" help:"Files sent to storage at once within a batch (0 for no limit)"`
	Partial        bool          `name:"partial" help:"Report partial success for multiple-file uploads instead of failing the batch"`
	Rollback       bool          `name:"rollback" help:"Delete stored files when a batch fails"`
	TaskTimeout    time.Duration `name:"task-timeout" default:"0" help:"Time allowed to store each file (0 for none)"`
	JSONLog        bool          `name:"json-log" help:"Log as JSON"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServerCommand) Run(ctx *Globals) error {
	logger := ctx.logger
	if cmd.JSONLog {
		level := slog.LevelInfo
		if ctx.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	// Resolve routes before opening storage, so a bad policy file fails fast
	routes, err := cmd.routes()
	if err != nil {
		return err
	}

	// Open the storage gateway
	tracer := otel.Tracer(schema.SchemaName)
	g, err := gateway.NewFromConfig(ctx.ctx, cmd.Config, gateway.WithTracer(tracer))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	// Create manager, which owns the gateway from here on
	opts := []manager.Opt{
		manager.WithGateway(g),
		manager.WithLogger(logger),
		manager.WithTracer(tracer),
		manager.WithMeter(otel.Meter(schema.SchemaName)),
		manager.WithConcurrency(cmd.Concurrency),
		manager.WithTaskTimeout(cmd.TaskTimeout),
	}
	for name, route := range routes {
		opts = append(opts, manager.WithRoute(name, route))
	}
	if cmd.Rollback {
		opts = append(opts, manager.WithRollback())
	}
	mgr, err := manager.New(ctx.ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	return serve(ctx, logger, mgr)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// routes returns the default routes with the configured policies and
// failure mode applied
func (cmd *RunServerCommand) routes() (map[string]manager.Route, error) {
	policies := policy.Presets()
	if cmd.Policies != "" {
		var err error
		if policies, err = policy.LoadFile(cmd.Policies); err != nil {
			return nil, err
		}
	}

	routes := manager.DefaultRoutes()
	for name, policyName := range map[string]string{
		manager.RouteUpload:         cmd.UploadPolicy,
		manager.RouteMultipleUpload: cmd.MultiplePolicy,
	} {
		p, ok := policies[policyName]
		if !ok {
			return nil, fmt.Errorf("route %q: unknown policy %q", name, policyName)
		}
		route := routes[name]
		route.Policy = p
		if cmd.Partial && name == manager.RouteMultipleUpload {
			route.Failure = manager.FailPartial
		}
		routes[name] = route
	}
	return routes, nil
}

// serve registers HTTP handlers and runs the server until context is done.
func serve(ctx *Globals, logger *slog.Logger, mgr *manager.Manager) error {
	middleware := []httprouter.HTTPMiddlewareFunc{
		requestLogger(logger),
	}

	// Create the router
	router, err := httprouter.NewRouter(ctx.ctx, ctx.HTTP.Prefix, ctx.HTTP.Origin, schema.SchemaName, version.Version(), middleware...)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// Register upload HTTP handlers
	if err := httphandler.RegisterHandlers(mgr, router); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	// Create and run the HTTP server
	srv, err := httpserver.New(ctx.HTTP.Addr, http.Handler(router), nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("started", "name", schema.SchemaName, "version", version.Version(), "addr", ctx.HTTP.Addr, "storage", mgr.Name())
	if err := srv.Run(ctx.ctx); err != nil {
		return err
	}
	logger.InfoContext(context.Background(), "stopped")
	return nil
}
