package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

const presignTTL = 15 * time.Minute

// Service hands out short-lived URLs for catalog images stored in the bucket.
// Invoice photos are fetched by the payment provider, so the links must be
// reachable without credentials.
type Service struct {
	client *minio.Client
	bucket string
}

func NewService(client *minio.Client, bucket string) *Service {
	return &Service{
		client: client,
		bucket: bucket,
	}
}

func (s *Service) ResolveURL(ctx context.Context, imageKey string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("media storage is not configured")
	}
	imageKey = strings.TrimSpace(imageKey)
	if imageKey == "" {
		return "", fmt.Errorf("image key is empty")
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, imageKey, presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign image %q: %w", imageKey, err)
	}

	return presigned.String(), nil
}
