// Package storage uploads product images to S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ikkim/storefront/config"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
)

// ImageContentTypes are the uploads accepted for product images.
var ImageContentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ObjectAPI is the part of the S3 client the uploader uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Storage struct {
	api      ObjectAPI
	presign  *s3.PresignClient
	bucket   string
	region   string
	baseURL  string
	maxBytes int64
}

type UploadResult struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type PresignedURLResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
	Key       string `json:"key"`
}

func NewS3Storage(cfg config.S3Config) *S3Storage {
	var awsCfg aws.Config
	var err error

	// If credentials are provided, use them. Otherwise, use default credential chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		}
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
		if err != nil {
			logger.Warn("Failed to load default AWS config, using region only", map[string]interface{}{
				"error": err.Error(),
			})
			awsCfg = aws.Config{Region: cfg.Region}
		}
	}

	client := s3.NewFromConfig(awsCfg)
	s := NewWithAPI(client, cfg)
	s.presign = s3.NewPresignClient(client)
	return s
}

// NewWithAPI builds an uploader over any ObjectAPI. Presigning is not
// available on it.
func NewWithAPI(api ObjectAPI, cfg config.S3Config) *S3Storage {
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &S3Storage{
		api:      api,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: maxBytes,
	}
}

func (s *S3Storage) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores an image under folder and returns its public URL. Nothing
// is stored when validation fails.
func (s *S3Storage) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (*UploadResult, error) {
	if err := s.ValidateContentType(contentType, ImageContentTypes); err != nil {
		return nil, apperrors.NewValidationError(apperrors.UploadInvalidFileType,
			"only JPEG, PNG, GIF and WebP images can be uploaded", map[string]string{"file": "is not an image"})
	}
	if size <= 0 {
		return nil, apperrors.NewValidationError(apperrors.ValidationRequired, "the file is empty",
			map[string]string{"file": "is required"})
	}
	if err := s.ValidateFileSize(size, s.maxBytes); err != nil {
		return nil, apperrors.NewValidationError(apperrors.UploadFileTooLarge,
			fmt.Sprintf("the file must be at most %d KB", s.maxBytes>>10), map[string]string{"file": "is too large"})
	}

	key := s.objectKey(folder, filename)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		logger.Error("Failed to upload object to S3", err, map[string]interface{}{
			"bucket": s.bucket,
			"key":    key,
		})
		return nil, apperrors.Wrap(apperrors.KindInternal, apperrors.UploadFailed, "the upload failed, please try again", err)
	}

	logger.Info("Uploaded object to S3", map[string]interface{}{
		"key":  key,
		"size": size,
	})
	return &UploadResult{URL: s.fileURL(key), Key: key, Size: size}, nil
}

// GeneratePresignedURLWithFolder generates a pre-signed URL for uploading a file to a specific folder
func (s *S3Storage) GeneratePresignedURLWithFolder(ctx context.Context, filename, contentType, folder string) (*PresignedURLResponse, error) {
	if s.presign == nil {
		return nil, apperrors.NewInternalError("direct uploads are not available", nil)
	}
	if err := s.ValidateContentType(contentType, ImageContentTypes); err != nil {
		return nil, apperrors.NewValidationError(apperrors.UploadInvalidFileType,
			"only JPEG, PNG, GIF and WebP images can be uploaded", map[string]string{"content_type": "is invalid"})
	}

	key := s.objectKey(folder, filename)

	// valid for 15 minutes
	presignedReq, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, apperrors.UploadFailed, "could not prepare the upload", err)
	}

	return &PresignedURLResponse{
		UploadURL: presignedReq.URL,
		FileURL:   s.fileURL(key),
		Key:       key,
	}, nil
}

func (s *S3Storage) objectKey(folder, filename string) string {
	if folder == "" {
		folder = "uploads"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.New().String(), ext)
}

func (s *S3Storage) fileURL(key string) string {
	if s.baseURL != "" {
		// CloudFront or custom domain
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// ValidateFileSize validates the file size
func (s *S3Storage) ValidateFileSize(size int64, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", maxSize)
	}
	return nil
}

// ValidateContentType validates the content type
func (s *S3Storage) ValidateContentType(contentType string, allowedTypes []string) error {
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return fmt.Errorf("content type %s is not allowed", contentType)
}
