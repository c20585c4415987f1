package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
)

// Bucket names
const (
	BucketAudioMessages = "audio-messages" // voice clips
	BucketUploads       = "gym_uploads"    // images, avatars
)

// ErrUnknownBucket is returned for buckets outside the configured set
var ErrUnknownBucket = errors.New("unknown storage bucket")

// S3Client wraps the AWS S3 client for S3/R2/MinIO compatible storage
type S3Client struct {
	client        *s3.Client
	buckets       map[string]bool
	publicBaseURL string // e.g. https://cdn.gymsmart.app/storage
	endpoint      string
	pathStyle     bool
}

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	Endpoint        string // e.g. https://xxx.r2.cloudflarestorage.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Buckets         []string
	PublicBaseURL   string
	ForcePathStyle  bool // true for MinIO/R2
}

// NewS3Client creates a new S3-compatible storage client
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if len(cfg.Buckets) == 0 {
		return nil, errors.New("no storage buckets configured")
	}

	opts := func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}

	client := s3.New(s3.Options{}, opts)

	buckets := make(map[string]bool, len(cfg.Buckets))
	for _, b := range cfg.Buckets {
		buckets[b] = true
	}

	pkglogger.GetLogger().Info().
		Strs("buckets", cfg.Buckets).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 storage client initialized")

	return &S3Client{
		client:        client,
		buckets:       buckets,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		pathStyle:     cfg.ForcePathStyle,
	}, nil
}

// UploadResult contains the result of a file upload
type UploadResult struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// HasBucket reports whether the bucket is configured
func (c *S3Client) HasBucket(bucket string) bool {
	return c.buckets[bucket]
}

// Upload uploads an object and returns its public URL
func (c *S3Client) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string, size int64) (*UploadResult, error) {
	if !c.HasBucket(bucket) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 upload failed: %w", err)
	}

	return &UploadResult{
		Bucket:      bucket,
		Key:         key,
		URL:         c.PublicURL(bucket, key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

// PublicURL returns the public URL of an object
func (c *S3Client) PublicURL(bucket, key string) string {
	return PublicURL(c.publicBaseURL, c.endpoint, c.pathStyle, bucket, key)
}

// PublicURL resolves the public URL for bucket/key. A configured public base
// wins; path-style endpoints (MinIO/R2) come next; AWS virtual-host last.
func PublicURL(publicBase, endpoint string, pathStyle bool, bucket, key string) string {
	escaped := escapeKey(key)
	switch {
	case publicBase != "":
		return publicBase + "/" + bucket + "/" + escaped
	case endpoint != "" && pathStyle:
		return endpoint + "/" + bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, escaped)
	}
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// AudioKey returns the sender-scoped key for a voice clip
func AudioKey(senderID string, at time.Time) string {
	return fmt.Sprintf("%s/%d.webm", senderID, at.UnixMilli())
}

// GenerateKey creates a unique storage key with a date prefix
func GenerateKey(prefix, filename string, at time.Time) string {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(path.Base(filename), ext)
	if base == "" || base == "." || base == "/" {
		base = "file"
	}
	return fmt.Sprintf("%s/%d/%02d/%02d/%s_%d%s",
		prefix, at.Year(), at.Month(), at.Day(),
		base, at.UnixMilli(), ext)
}
