package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Config is the storage configuration, usually read from the environment.
type Config struct {
	Storage   string `name:"storage" env:"UPLOADER_STORAGE" enum:"mem,file,s3" default:"mem" help:"Storage type (mem, file, s3)"`
	Account   string `name:"account" env:"UPLOADER_ACCOUNT" help:"Storage account name, or bucket for s3"`
	AccessKey string `name:"access-key" env:"UPLOADER_ACCESS_KEY" help:"Storage access key (s3)"`
	Secret    string `name:"secret" env:"UPLOADER_SECRET" help:"Storage secret (s3)"`
	Region    string `name:"region" env:"UPLOADER_REGION" help:"Storage region (s3)"`
	Endpoint  string `name:"endpoint" env:"UPLOADER_ENDPOINT" help:"S3-compatible endpoint URL"`
	Dir       string `name:"dir" env:"UPLOADER_DIR" help:"Storage directory (file)"`
	PublicURL string `name:"public-url" env:"UPLOADER_PUBLIC_URL" help:"Base URL for asset links"`
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewFromConfig validates the configuration and opens the gateway.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Opt) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(ctx, cfg.URL(), append(cfg.Opts(), opts...)...)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate returns an error when required settings are missing, so that
// a misconfigured process fails at startup rather than at first upload.
func (cfg Config) Validate() error {
	var result error
	if cfg.Account == "" {
		result = errors.Join(result, errors.New("missing storage account (UPLOADER_ACCOUNT)"))
	}
	switch cfg.Storage {
	case "mem":
	case "file":
		if cfg.Dir == "" {
			result = errors.Join(result, errors.New("missing storage directory (UPLOADER_DIR)"))
		} else if !filepath.IsAbs(cfg.Dir) {
			result = errors.Join(result, fmt.Errorf("storage directory %q must be an absolute path", cfg.Dir))
		}
	case "s3":
		if cfg.AccessKey == "" {
			result = errors.Join(result, errors.New("missing storage access key (UPLOADER_ACCESS_KEY)"))
		}
		if cfg.Secret == "" {
			result = errors.Join(result, errors.New("missing storage secret (UPLOADER_SECRET)"))
		}
	default:
		result = errors.Join(result, fmt.Errorf("unsupported storage type %q", cfg.Storage))
	}
	return result
}

// URL returns the gateway URL for the configuration
func (cfg Config) URL() string {
	u := url.URL{Scheme: cfg.Storage, Host: cfg.Account}
	if cfg.Storage == "file" {
		u.Path = filepath.ToSlash(filepath.Clean(cfg.Dir))
	}
	return u.String()
}

// Opts returns the gateway options for the configuration
func (cfg Config) Opts() []Opt {
	opts := []Opt{WithPublicURL(cfg.PublicURL)}
	switch cfg.Storage {
	case "file":
		opts = append(opts, WithCreateDir())
	case "s3":
		opts = append(opts, WithRegion(cfg.Region), WithEndpoint(cfg.Endpoint), WithCredentials(cfg.AccessKey, cfg.Secret))
	}
	return opts
}
