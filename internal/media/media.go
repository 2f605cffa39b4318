// Package media stores uploaded cover images in an S3-compatible bucket
// and hands back their public URLs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/util"
)

var mediaLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

// MaxUploadSize caps cover image uploads.
const MaxUploadSize = 10 << 20 // 10 MiB

var allowedTypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// Uploader is the storage surface the media handler uses.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// S3Store implements Uploader against any S3-compatible endpoint.
type S3Store struct {
	client *s3.Client

	bucket        string
	publicBaseURL string
}

func NewS3Store(accessKeyID, accessKeySecret, baseEndpoint, bucket, publicBaseURL string) *S3Store {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		mediaLogger.Fatal().Err(err).Msg("Error initializing S3 client")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(baseEndpoint)
	})

	return &S3Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// ObjectKey builds a unique key under covers/ that keeps the original
// file name recognizable.
func ObjectKey(filename string, data []byte) string {
	ext := strings.ToLower(path.Ext(filename))
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	base = sanitizeBase(base)
	if base == "" {
		base = "asset"
	}

	hash := util.ContentHash(data)
	return fmt.Sprintf("covers/%s-%s-%s%s", base, hash[:12], uuid.NewString()[:8], ext)
}

func sanitizeBase(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// ValidateUpload checks the declared content type and size before any
// bytes reach the bucket.
func ValidateUpload(contentType string, size int) error {
	if _, ok := allowedTypes[contentType]; !ok {
		return fmt.Errorf("validation: unsupported content type %q", contentType)
	}
	if size <= 0 {
		return fmt.Errorf("validation: empty upload")
	}
	if size > MaxUploadSize {
		return fmt.Errorf("validation: upload exceeds %d bytes", MaxUploadSize)
	}
	return nil
}

// Upload validates and stores the asset, returning its public URL.
func (s *S3Store) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if err := ValidateUpload(contentType, len(data)); err != nil {
		return "", err
	}

	key := ObjectKey(filename, data)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading asset: %w", err)
	}

	url := s.publicBaseURL + "/" + key
	mediaLogger.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Asset uploaded")
	return url, nil
}
