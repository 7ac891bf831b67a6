package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner issues time-limited download URLs for stored asset files.
type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

// NewPresigner builds an S3 presign client from cfg. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
// A base endpoint (MinIO and similar) switches to path-style addressing.
func NewPresigner(ctx context.Context, cfg config.StorageConfig) (*Presigner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.Bucket,
		ttl:    cfg.PresignTTL,
	}, nil
}

// DownloadURL presigns a GET of key that saves as filename.
func (p *Presigner) DownloadURL(ctx context.Context, key, filename string) (string, time.Time, error) {
	if filename == "" {
		filename = path.Base(key)
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})

	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(p.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign download: %w", err)
	}

	return req.URL, time.Now().Add(p.ttl), nil
}
