// Package storage provides template and artifact object storage for QuoteBot.
//
// This file implements a filesystem backend for local runs and tests.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemStorage serves templates from one directory and writes artifacts
// to another. Links are file:// URLs; they do not expire, which is fine for
// the local setups this backend targets.
type FilesystemStorage struct {
	templateDir string
	outputDir   string
}

// NewFilesystemStorage creates a filesystem backend, creating the output
// directory if missing.
func NewFilesystemStorage(templateDir, outputDir string) (*FilesystemStorage, error) {
	if templateDir == "" || outputDir == "" {
		return nil, fmt.Errorf("template and output directories must be set")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FilesystemStorage{templateDir: templateDir, outputDir: outputDir}, nil
}

// FetchTemplate reads a template file from the template directory.
func (s *FilesystemStorage) FetchTemplate(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.templateDir, filepath.Base(key)))
	if err != nil {
		slog.Error("FilesystemStorage FetchTemplate failed", "error", err, "key", key)
		return nil, fmt.Errorf("failed to fetch template %s: %w", key, err)
	}
	return data, nil
}

// StoreArtifact writes a generated document into the output directory.
func (s *FilesystemStorage) StoreArtifact(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(s.outputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("FilesystemStorage StoreArtifact failed", "error", err, "name", name)
		return fmt.Errorf("failed to store artifact %s: %w", name, err)
	}
	slog.Debug("FilesystemStorage StoreArtifact succeeded", "path", path, "bytes", len(data))
	return nil
}

// TemporaryLink returns a file:// URL for the stored artifact.
func (s *FilesystemStorage) TemporaryLink(ctx context.Context, name string, ttl time.Duration) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.outputDir, filepath.Base(name)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact path %s: %w", name, err)
	}
	return "file://" + abs, nil
}

// hasSuffixFold reports whether name ends in suffix, case-insensitively.
func hasSuffixFold(name, suffix string) bool {
	return len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix)
}
