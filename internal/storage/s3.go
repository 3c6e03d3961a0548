// Package storage provides template and artifact object storage for QuoteBot.
//
// This file implements the S3-compatible backend.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Opts holds configuration options for the S3 backend.
type Opts struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	TemplateBucket string
	OutputBucket   string
}

// Option defines a configuration option for the S3 backend.
type Option func(*Opts)

// WithEndpoint sets the S3-compatible endpoint host.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithCredentials sets the access and secret keys.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *Opts) { o.AccessKey = accessKey; o.SecretKey = secretKey }
}

// WithSSL enables TLS for the endpoint.
func WithSSL(useSSL bool) Option {
	return func(o *Opts) { o.UseSSL = useSSL }
}

// WithTemplateBucket sets the bucket holding quotation templates.
func WithTemplateBucket(bucket string) Option {
	return func(o *Opts) { o.TemplateBucket = bucket }
}

// WithOutputBucket sets the bucket receiving generated quotations.
func WithOutputBucket(bucket string) Option {
	return func(o *Opts) { o.OutputBucket = bucket }
}

// S3Storage reads templates from and writes artifacts to S3-compatible
// object storage. It implements both TemplateSource and ArtifactStore.
type S3Storage struct {
	client         *minio.Client
	templateBucket string
	outputBucket   string
}

// NewS3Storage creates an S3 storage backend.
func NewS3Storage(opts ...Option) (*S3Storage, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewS3Storage invoked", "endpoint", cfg.Endpoint,
		"template_bucket", cfg.TemplateBucket, "output_bucket", cfg.OutputBucket)

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object storage endpoint not set")
	}
	if cfg.TemplateBucket == "" || cfg.OutputBucket == "" {
		return nil, fmt.Errorf("template and output buckets must be set")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		slog.Error("Failed to create object storage client", "error", err)
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &S3Storage{
		client:         client,
		templateBucket: cfg.TemplateBucket,
		outputBucket:   cfg.OutputBucket,
	}, nil
}

// FetchTemplate downloads a template object from the template bucket.
func (s *S3Storage) FetchTemplate(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.templateBucket, key, minio.GetObjectOptions{})
	if err != nil {
		slog.Error("S3Storage FetchTemplate failed", "error", err, "key", key)
		return nil, fmt.Errorf("failed to fetch template %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		slog.Error("S3Storage FetchTemplate read failed", "error", err, "key", key)
		return nil, fmt.Errorf("failed to read template %s: %w", key, err)
	}
	slog.Debug("S3Storage FetchTemplate succeeded", "key", key, "bytes", len(data))
	return data, nil
}

// StoreArtifact uploads a generated document to the output bucket.
func (s *S3Storage) StoreArtifact(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.outputBucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeFor(name)})
	if err != nil {
		slog.Error("S3Storage StoreArtifact failed", "error", err, "name", name)
		return fmt.Errorf("failed to store artifact %s: %w", name, err)
	}
	slog.Debug("S3Storage StoreArtifact succeeded", "name", name, "bytes", len(data))
	return nil
}

// TemporaryLink returns a presigned GET URL for an artifact.
func (s *S3Storage) TemporaryLink(ctx context.Context, name string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.outputBucket, name, ttl, nil)
	if err != nil {
		slog.Error("S3Storage TemporaryLink failed", "error", err, "name", name)
		return "", fmt.Errorf("failed to presign artifact %s: %w", name, err)
	}
	return u.String(), nil
}

func contentTypeFor(name string) string {
	switch {
	case hasSuffixFold(name, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case hasSuffixFold(name, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
