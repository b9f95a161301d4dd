package shardsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"meshstore/internal/config"
)

// S3Source enumerates and opens CSV shards from an S3 bucket. Adapted from
// the teacher's internal/objectstore/s3.go, trimmed to the read-only
// List/Open surface ingestion needs (no Put/Delete/Copy/SSE — a shard
// source never writes back to the bucket it reads from).
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source builds an S3Source from configuration, using the default AWS
// credential chain (environment, shared config, or instance role).
func NewS3Source(ctx context.Context, cfg config.S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("shardsource: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("shardsource: load aws config: %w", err)
	}
	return &S3Source{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Source) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// List returns object keys under prefix (relative to the configured bucket prefix).
func (s *S3Source) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.fullKey(prefix)
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if full != "" {
		input.Prefix = aws.String(full)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("shardsource: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix+"/"))
		}
	}
	return sortedCopy(keys), nil
}

// Open streams the object at key.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("shardsource: s3 get %q: %w", key, err)
	}
	return out.Body, nil
}

var _ Source = (*S3Source)(nil)
