package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/session"
)

var _ retention.Archiver = (*Archiver)(nil)

// S3Client defines the S3 operations used by Archiver.
type S3Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3aws.HeadBucketInput, optFns ...func(*s3aws.Options)) (*s3aws.HeadBucketOutput, error)
}

// Config contains configuration for the archive bucket.
type Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`                            // For S3-compatible services like MinIO, Wasabi
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"` // Required for MinIO and some S3-compatible services
	KeyPrefix      string `env:"S3_KEY_PREFIX" envDefault:"sessions/purged"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Option configures an Archiver.
type Option func(*options)

type options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ConfigOptions []func(*config.LoadOptions) error
	s3ClientOptions []func(*s3aws.Options)
	uploadTimeout   time.Duration
	now             func() time.Time
}

// WithS3Client sets a custom pre-configured S3 client. Primarily used for testing.
func WithS3Client(client S3Client) Option {
	return func(o *options) {
		o.s3Client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds a custom AWS config option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) Option {
	return func(o *options) {
		o.s3ConfigOptions = append(o.s3ConfigOptions, option)
	}
}

// WithS3ClientOption adds a custom S3 client option.
func WithS3ClientOption(option func(*s3aws.Options)) Option {
	return func(o *options) {
		o.s3ClientOptions = append(o.s3ClientOptions, option)
	}
}

// WithUploadTimeout bounds each upload. If not set, relies on the caller's deadline.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.uploadTimeout = timeout
	}
}

// WithClock overrides the time source used for object keys.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Archiver writes purged sessions to S3 as JSON Lines, one object per purge.
type Archiver struct {
	client        S3Client
	bucket        string
	prefix        string
	uploadTimeout time.Duration
	now           func() time.Time
}

// New creates an archiver. Credentials fall back to the default AWS chain
// when no static keys are configured.
func New(ctx context.Context, cfg Config, opts ...Option) (*Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	client := o.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if o.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(o.httpClient))
		}
		awsOptions = append(awsOptions, o.s3ConfigOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("failed to load AWS config: %w", err))
		}

		client = s3aws.NewFromConfig(awsConfig, func(so *s3aws.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.s3ClientOptions {
				opt(so)
			}
		})
	}

	return &Archiver{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.KeyPrefix,
		uploadTimeout: o.uploadTimeout,
		now:           o.now,
	}, nil
}

// Archive implements retention.Archiver.
func (a *Archiver) Archive(ctx context.Context, sessions []*session.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range sessions {
		if err := enc.Encode(s); err != nil {
			return errors.Join(ErrEncodeArchive, err)
		}
	}

	if a.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.uploadTimeout)
		defer cancel()
	}

	_, err := a.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.key()),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"session-count": fmt.Sprint(len(sessions)),
		},
	})
	return classifyS3Error(err, "archive")
}

// key returns prefix/YYYY/MM/DD/<unix>-<uuid>.jsonl.
func (a *Archiver) key() string {
	now := a.now().UTC()
	return path.Join(a.prefix, now.Format("2006/01/02"),
		fmt.Sprintf("%d-%s.jsonl", now.Unix(), uuid.NewString()))
}

// Healthcheck verifies the bucket is reachable.
func (a *Archiver) Healthcheck(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3aws.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return classifyS3Error(err, "head bucket")
}
