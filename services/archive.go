package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether enough is configured to archive boards.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// NewS3Client initializes an S3 client. A custom endpoint makes it work
// with MinIO and other S3-compatible services; without one the default AWS
// resolution applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("invalid S3 endpoint: %w", err)
		}
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// ObjectStore is the part of *s3.Client the archive needs.
type ObjectStore interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveService exports board snapshots as JSON objects under
// boards/{boardID}/{timestamp}.json.
type ArchiveService struct {
	objects ObjectStore
	bucket  string
	boards  *BoardService
	now     func() time.Time
}

// NewArchiveService returns a service that reports ErrArchiveDisabled when
// objects is nil.
func NewArchiveService(objects ObjectStore, bucket string, boards *BoardService) *ArchiveService {
	return &ArchiveService{objects: objects, bucket: bucket, boards: boards, now: time.Now}
}

func (s *ArchiveService) Enabled() bool { return s.objects != nil }

// EnsureBucketExists checks that the configured bucket is reachable.
func (s *ArchiveService) EnsureBucketExists(ctx context.Context) error {
	if !s.Enabled() {
		return ErrArchiveDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchBucket") {
			return fmt.Errorf("bucket %s does not exist", s.bucket)
		}
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	return nil
}

// ArchiveBoard writes the current snapshot of a board and returns the
// object key.
func (s *ArchiveService) ArchiveBoard(ctx context.Context, userID, boardID string) (string, error) {
	if !s.Enabled() {
		return "", ErrArchiveDisabled
	}

	snap, err := s.boards.Snapshot(ctx, userID, boardID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode board snapshot: %w", err)
	}

	key := fmt.Sprintf("boards/%s/%s.json", boardID, s.now().UTC().Format("20060102T150405.000Z"))
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("failed to save board to S3 (%s): %w", apiErr.ErrorCode(), err)
		}
		return "", fmt.Errorf("failed to save board to S3: %w", err)
	}

	log.Printf("Board %s archived to s3://%s/%s", boardID, s.bucket, key)
	return key, nil
}
