// Package storage uploads dataset splits and source bundles to S3. It is a
// thin layer over the AWS SDK: the only classification it performs is
// tolerating buckets that already exist, everything else propagates.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes objects under a fixed bucket and key prefix.
type Store struct {
	client S3API
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// New creates a Store for the given bucket, prefix and region.
func New(client S3API, bucket, prefix, region string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		region: region,
		logger: slog.Default().With(log.ComponentKey, "storage", log.BucketKey, bucket),
	}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// EnsureBucket creates the bucket if it does not exist. A bucket that
// already exists, whether owned by this account or not, is not an error.
func (s *Store) EnsureBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		var exists *s3types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			s.logger.Debug("bucket already exists", log.OperationKey, "CreateBucket")
			return nil
		}
		return errors.Wrapf(err, "storage.EnsureBucket: create bucket %s", s.bucket)
	}

	s.logger.Info("bucket created", log.OperationKey, "CreateBucket")
	return nil
}

// Upload writes the reader's contents to the given key under the store
// prefix and returns the object's s3:// URI.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	fullKey := s.key(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Body:   body,
	})
	if err != nil {
		return "", errors.Wrapf(err, "storage.Upload: put s3://%s/%s", s.bucket, fullKey)
	}

	uri := s.URI(key)
	s.logger.Info("object uploaded",
		log.OperationKey, "PutObject",
		log.ObjectKeyKey, fullKey,
		log.S3URIKey, uri,
	)
	return uri, nil
}

// UploadFile uploads a local file to the given key under the store prefix.
func (s *Store) UploadFile(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrapf(err, "storage.UploadFile: open %s", localPath)
	}
	defer f.Close()
	return s.Upload(ctx, key, f)
}

// URI returns the s3:// URI for a key under the store prefix.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(key))
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
