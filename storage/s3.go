package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/private-content-market/interfaces"
)

// S3Config holds connection settings for Amazon S3 or a compatible service such as MinIO.
type S3Config struct {
	Bucket     string
	Prefix     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PathStyle  bool
	DisableSSL bool
	// CreateBucket creates the bucket on first write if it does not exist.
	CreateBucket bool
}

// S3Backend implements a storage backend using Amazon S3 or compatible services.
// Objects are private; nothing is written with a public ACL.
type S3Backend struct {
	client       *s3.S3
	cfg          S3Config
	log          *slog.Logger
	locationURI  string
	bucketMu     sync.Mutex
	bucketExists bool
}

// NewS3Backend creates a new S3 storage backend.
func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket name must not be empty")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	// Format the URI for tracking, never exposing the secret
	uri := fmt.Sprintf("s3://%s/%s?region=%s", cfg.Bucket, cfg.Prefix, cfg.Region)
	if cfg.AccessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", cfg.AccessKey, cfg.Bucket, cfg.Prefix, cfg.Region)
	}
	if cfg.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", cfg.Endpoint)
	}

	awsCfg := aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
		HTTPClient:       &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		log.Warn("No S3 credentials provided - falling back to the default credential chain")
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Backend{
		client:      s3.New(sess),
		cfg:         cfg,
		log:         log,
		locationURI: uri,
	}, nil
}

// Get retrieves the object stored under key.
// Returns ErrContentNotFound if the object doesn't exist.
func (b *S3Backend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	start := time.Now()
	objectKey := b.objectKey(key)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			b.log.Debug("Object not found in S3",
				slog.String("bucket", b.cfg.Bucket),
				slog.String("key", objectKey),
				slog.Duration("duration", time.Since(start)))
			return interfaces.StoredObject{}, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.cfg.Bucket),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to get object from S3: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to read object body: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Fetched object from S3",
		slog.String("bucket", b.cfg.Bucket),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return decodeObject(data)
}

// Put uploads the object under key, replacing any previous version.
func (b *S3Backend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	if b.cfg.CreateBucket {
		if err := b.ensureBucket(ctx); err != nil {
			return err
		}
	}

	objectKey := b.objectKey(key)
	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		b.log.Error("Failed to upload object to S3",
			slog.String("bucket", b.cfg.Bucket),
			slog.String("key", objectKey),
			"err", err)
		return fmt.Errorf("%w: failed to upload object to S3: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored object in S3",
		slog.String("bucket", b.cfg.Bucket),
		slog.String("key", objectKey),
		slog.Int("size", len(data)))

	return nil
}

// ensureBucket creates the bucket the first time it is found missing.
func (b *S3Backend) ensureBucket(ctx context.Context) error {
	b.bucketMu.Lock()
	defer b.bucketMu.Unlock()

	if b.bucketExists {
		return nil
	}

	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.cfg.Bucket),
	})
	if err == nil {
		b.bucketExists = true
		return nil
	}
	if !isS3NotFound(err) {
		return fmt.Errorf("%w: failed to check bucket: %v", interfaces.ErrBackendUnavailable, err)
	}

	_, err = b.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.cfg.Bucket),
	})
	if err != nil {
		var aerr awserr.Error
		if !errors.As(err, &aerr) || (aerr.Code() != s3.ErrCodeBucketAlreadyOwnedByYou && aerr.Code() != s3.ErrCodeBucketAlreadyExists) {
			return fmt.Errorf("%w: failed to create bucket: %v", interfaces.ErrBackendUnavailable, err)
		}
	}

	b.log.Info("Created S3 bucket", slog.String("bucket", b.cfg.Bucket))
	b.bucketExists = true
	return nil
}

// Available checks if the S3 backend is accessible by attempting to head the bucket.
// A missing bucket counts as available when it will be created on first write.
func (b *S3Backend) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.cfg.Bucket),
	})
	if err != nil {
		if b.cfg.CreateBucket && isS3NotFound(err) {
			return true
		}
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.cfg.Bucket),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.cfg.Bucket)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) objectKey(key string) string {
	if b.cfg.Prefix == "" {
		return key
	}
	return path.Join(b.cfg.Prefix, key)
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
