package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/gymsmart/gymsmart-backend/pkg/storage"
)

// DefaultMaxUploadSize upload size limit
const DefaultMaxUploadSize = 20 * 1024 * 1024

// ObjectStore is the part of the storage client uploads need
type ObjectStore interface {
	HasBucket(bucket string) bool
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error)
}

// MediaService uploads chat attachments to object storage
type MediaService struct {
	store   ObjectStore
	maxSize int64
	now     func() time.Time
}

// NewMediaService creates a new MediaService. A nil store disables uploads.
func NewMediaService(store ObjectStore) *MediaService {
	return &MediaService{
		store:   store,
		maxSize: DefaultMaxUploadSize,
		now:     time.Now,
	}
}

// Upload stores an object for userID and returns its public location.
// Voice clips land under <user>/<unix millis>.webm in the audio bucket;
// everything else gets a dated key under the user's prefix.
func (s *MediaService) Upload(ctx context.Context, bucket, userID, filename string, body io.Reader) (*storage.UploadResult, error) {
	if s.store == nil {
		return nil, common.ErrStorageUnavailable
	}
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	if !s.store.HasBucket(bucket) {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, storage.ErrUnknownBucket)
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: file too large (max %dMB)", common.ErrInvalidInput, s.maxSize/(1024*1024))
	}

	contentType := http.DetectContentType(data)
	at := s.now()
	var key string
	switch bucket {
	case storage.BucketAudioMessages:
		if !isAudioUpload(contentType) {
			return nil, fmt.Errorf("%w: unsupported audio type %s", common.ErrInvalidInput, contentType)
		}
		// sniffing reports webm as video/webm
		contentType = "audio/webm"
		key = storage.AudioKey(userID, at)
	default:
		key = storage.GenerateKey(userID, filename, at)
	}

	result, err := s.store.Upload(ctx, bucket, key, bytes.NewReader(data), contentType, int64(len(data)))
	if err != nil {
		return nil, err
	}
	pkglogger.GetLogger().Info().
		Str("bucket", bucket).
		Str("key", key).
		Int("size", len(data)).
		Msg("object uploaded")
	return result, nil
}

func isAudioUpload(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/webm") ||
		contentType == "application/octet-stream"
}
