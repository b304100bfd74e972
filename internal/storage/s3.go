package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"alcyxob/video-catalog/internal/config"
	"alcyxob/video-catalog/internal/stream"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of *s3.Client used for streaming.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage serves media objects from an S3-compatible bucket.
type S3Storage struct {
	client        s3API
	presignClient *s3.PresignClient // nil when built around a custom s3API
	bucketName    string
	contentType   stream.ContentTyper
}

// NewS3Storage creates a new S3 storage service instance.
func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	loadOpts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for S3: %v", err)
		return nil, err
	}

	// Force path-style addressing required by most S3-compatible services (like MinIO)
	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = true
	})

	log.Printf("INFO: S3 media storage initialized for endpoint: %q, bucket: %s", cfg.Endpoint, cfg.BucketName)

	return &S3Storage{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		contentType:   stream.VideoContentType,
	}, nil
}

// endpointURL adds a scheme to a bare host[:port] endpoint according to
// use_ssl. Endpoints that already carry a scheme are used as given.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// newS3StorageWithClient wires an arbitrary client; presigning is unavailable.
func newS3StorageWithClient(client s3API, bucket string) *S3Storage {
	return &S3Storage{client: client, bucketName: bucket, contentType: stream.VideoContentType}
}

// Stat implements stream.MediaStore using HeadObject.
func (s *S3Storage) Stat(ctx context.Context, locator string) (stream.Metadata, error) {
	key, err := stream.CleanLocator(locator)
	if err != nil {
		return stream.Metadata{}, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return stream.Metadata{Exists: false, Size: 0, ContentType: stream.DefaultFileType}, nil
		}
		log.Printf("ERROR: Failed to head object '%s' in bucket '%s': %v", key, s.bucketName, err)
		return stream.Metadata{}, fmt.Errorf("head object: %w", err)
	}

	ct, err := s.contentType(key)
	if err != nil {
		return stream.Metadata{}, err
	}
	return stream.Metadata{Exists: true, Size: aws.ToInt64(out.ContentLength), ContentType: ct}, nil
}

// Open implements stream.MediaStore with a ranged GetObject. The returned body
// holds an HTTP connection until closed.
func (s *S3Storage) Open(ctx context.Context, locator string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: cannot open [%d, %d]", stream.ErrInvalidRange, start, end)
	}
	key, err := stream.CleanLocator(locator)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, stream.ErrFileNotFound
		}
		log.Printf("ERROR: Failed to get object '%s' from bucket '%s': %v", key, s.bucketName, err)
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// GeneratePresignedDownloadURL creates a temporary URL for downloading (GET).
func (s *S3Storage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if s.presignClient == nil {
		return "", errors.New("presigning is not configured")
	}
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	key, err := stream.CleanLocator(objectKey)
	if err != nil {
		return "", err
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		log.Printf("ERROR: Failed to generate presigned GET URL for key '%s': %v", key, err)
		return "", err
	}

	return req.URL, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
