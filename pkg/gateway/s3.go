package gateway

import (
	"context"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	s3 "github.com/aws/aws-sdk-go-v2/service/s3"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const defaultRegion = "us-east-1"

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// s3Client creates the S3 client for an s3:// gateway
func (g *Gateway) s3Client(ctx context.Context) (*s3.Client, error) {
	var cfg aws.Config
	if g.awsConfig != nil {
		cfg = g.awsConfig.Copy()
	} else {
		opts := []func(*config.LoadOptions) error{}
		if g.region != "" {
			opts = append(opts, config.WithRegion(g.region))
		}
		switch {
		case g.accessKey != "":
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(g.accessKey, g.secret, ""),
			))
		case g.anonymous:
			opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
		}
		if loaded, err := config.LoadDefaultConfig(ctx, opts...); err != nil {
			return nil, err
		} else {
			cfg = loaded
		}
	}

	// Each S3 API call produces a child span when tracing
	if g.tracer != nil {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if o.Region == "" {
			o.Region = defaultRegion
		}
		if g.endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(g.endpoint)
		}
	}), nil
}
