package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrInvalidConfig      = errors.New("s3: invalid configuration")
	ErrBucketNotFound     = errors.New("s3: bucket not found")
	ErrAccessDenied       = errors.New("s3: access denied")
	ErrOperationTimeout   = errors.New("s3: operation timeout")
	ErrOperationCanceled  = errors.New("s3: operation canceled")
	ErrRequestTimeout     = errors.New("s3: request timeout")
	ErrServiceUnavailable = errors.New("s3: service unavailable")
	ErrEncodeArchive      = errors.New("s3: failed to encode archive")
)

// classifyS3Error converts S3 errors to domain-specific errors.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Context errors have highest priority for proper cancellation handling
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s operation", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s operation", ErrOperationCanceled, operation)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %s operation", ErrAccessDenied, operation)
		case "RequestTimeout":
			return fmt.Errorf("%w: %s operation", ErrRequestTimeout, operation)
		case "SlowDown", "ServiceUnavailable":
			return fmt.Errorf("%w: %s operation", ErrServiceUnavailable, operation) // Retryable
		case "NoSuchBucket", "NotFound":
			return ErrBucketNotFound
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}
