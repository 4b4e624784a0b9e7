package gateway

import (
	"fmt"
	"net/url"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	url       *url.URL
	publicURL *url.URL     // base URL for public asset links
	awsConfig *aws.Config  // overrides the default AWS configuration for s3://
	endpoint  string       // S3-compatible endpoint, e.g. http://localhost:9000
	region    string       // S3 region
	accessKey string       // static S3 credentials
	secret    string       // static S3 credentials
	anonymous bool         // anonymous S3 credentials
	tracer    trace.Tracer // when set, AWS SDK middleware is injected
}

// Opt is a functional option for gateway configuration.
type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(url *url.URL, opts ...Opt) (*opt, error) {
	o := opt{url: url}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithPublicURL sets the base URL used to build asset URLs. The public id
// is appended as a path, for example https://cdn.example.com/assets/images/abc.
func WithPublicURL(base string) Opt {
	return func(o *opt) error {
		if base == "" {
			return nil
		}
		u, err := url.Parse(base)
		if err != nil {
			return err
		} else if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("public url must be http:// or https://, got %q", base)
		}
		o.publicURL = u
		return nil
	}
}

// WithEndpoint sets the S3 endpoint for S3-compatible services.
// Path-style addressing is always used with a custom endpoint.
func WithEndpoint(endpoint string) Opt {
	return func(o *opt) error {
		if endpoint == "" {
			return nil
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		} else if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint must be http:// or https://, got %s://", u.Scheme)
		}
		o.endpoint = u.String()
		return nil
	}
}

// WithRegion sets the S3 region.
func WithRegion(region string) Opt {
	return func(o *opt) error {
		o.region = region
		return nil
	}
}

// WithCredentials sets static S3 credentials.
func WithCredentials(accessKey, secret string) Opt {
	return func(o *opt) error {
		if accessKey == "" || secret == "" {
			return fmt.Errorf("access key and secret are both required")
		}
		o.accessKey, o.secret = accessKey, secret
		return nil
	}
}

// WithAnonymous forces use of anonymous credentials.
func WithAnonymous() Opt {
	return func(o *opt) error {
		o.anonymous = true
		return nil
	}
}

// WithCreateDir creates the root directory of a file:// gateway if it does
// not exist.
func WithCreateDir() Opt {
	return func(o *opt) error {
		o.set("create_dir", "true")
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. On an s3:// gateway each S3 API
// call then produces a child span.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opt) error {
		o.tracer = tracer
		return nil
	}
}

// WithAWSConfig provides an AWS SDK v2 Config directly, replacing the
// region and credential options.
func WithAWSConfig(cfg aws.Config) Opt {
	return func(o *opt) error {
		o.awsConfig = &cfg
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (o *opt) set(key, value string) {
	if o.url == nil {
		return
	}
	q := o.url.Query()
	if value == "" {
		q.Del(key)
	} else {
		q.Set(key, value)
	}
	o.url.RawQuery = q.Encode()
}
