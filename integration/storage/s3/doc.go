// Package s3 archives purged sessions to Amazon S3 and S3-compatible storage.
//
// The Archiver implements retention.Archiver: every purge that removes rows
// uploads one JSON Lines object holding the removed sessions.
//
//	cfg := s3.Config{
//		Bucket: "audit-archive",
//		Region: "us-east-1",
//	}
//
//	archiver, err := s3.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//
//	sweeper, err := retention.New(store, retention.WithArchiver(archiver))
//
// Objects are keyed <KeyPrefix>/YYYY/MM/DD/<unix>-<uuid>.jsonl.
//
// # S3-Compatible Services
//
// MinIO configuration:
//
//	cfg := s3.Config{
//		Bucket:         "my-bucket",
//		Region:         "us-east-1", // Required
//		AccessKeyID:    "minioadmin",
//		SecretKey:      "minioadmin",
//		Endpoint:       "http://localhost:9000",
//		ForcePathStyle: true, // Required for MinIO
//	}
//
// # Configuration Options
//
//	// Custom HTTP client
//	httpClient := &http.Client{Timeout: 30 * time.Second}
//	archiver, err := s3.New(ctx, cfg, s3.WithHTTPClient(httpClient))
//
//	// Upload timeout
//	archiver, err := s3.New(ctx, cfg, s3.WithUploadTimeout(time.Minute))
//
//	// Custom S3 client for testing
//	archiver, err := s3.New(ctx, cfg, s3.WithS3Client(mockClient))
//
// Errors are classified into ErrBucketNotFound, ErrAccessDenied,
// ErrOperationTimeout and the other sentinel errors of this package.
package s3
