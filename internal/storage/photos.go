// Package storage keeps ticket photos in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"cleanup-quest-bot/internal/config"
)

// Photo sides of a ticket.
const (
	SideBefore = "before"
	SideAfter  = "after"
)

// MaxPhotoBytes caps a single upload; the Bot API never serves larger files.
const MaxPhotoBytes = 20 << 20

// objectAPI is the part of *s3.Client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// PhotoStore uploads and deletes ticket photos by object key.
type PhotoStore struct {
	client        objectAPI
	bucket        string
	publicBaseURL string
}

// NewPhotoStore creates a PhotoStore from the storage config.
func NewPhotoStore(cfg config.StorageConfig) *PhotoStore {
	opts := s3.Options{
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &PhotoStore{
		client:        s3.New(opts),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// PhotoKey builds users/<user>/tickets/<ticket>/<side>/<uuid>.jpg.
func PhotoKey(userID int64, ticketID, side string) string {
	return fmt.Sprintf("users/%d/tickets/%s/%s/%s.jpg", userID, ticketID, side, uuid.NewString())
}

// Upload stores body under key. The body is buffered so the request carries
// an exact Content-Length; S3 refuses chunked uploads without one.
func (s *PhotoStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxPhotoBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(data) > MaxPhotoBytes {
		return fmt.Errorf("photo %s exceeds %d bytes", key, MaxPhotoBytes)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Delete removes every key, continuing past failures. The returned error
// joins every failed key.
func (s *PhotoStore) Delete(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// URL returns the public address of key, or the key itself when no public
// base URL is configured.
func (s *PhotoStore) URL(key string) string {
	if s.publicBaseURL == "" {
		return key
	}
	return s.publicBaseURL + "/" + key
}
