package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFilesystemStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	templateDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	if err := os.WriteFile(filepath.Join(templateDir, "template_ongrid.docx"), []byte("template bytes"), 0644); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}

	s, err := NewFilesystemStorage(templateDir, outputDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	data, err := s.FetchTemplate(ctx, "template_ongrid.docx")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "template bytes" {
		t.Errorf("template = %q", data)
	}

	if _, err := s.FetchTemplate(ctx, "missing.docx"); err == nil {
		t.Error("expected error for missing template")
	}

	if err := s.StoreArtifact(ctx, "QUOTE_Acme_5_KW.docx", []byte("merged")); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	stored, err := os.ReadFile(filepath.Join(outputDir, "QUOTE_Acme_5_KW.docx"))
	if err != nil {
		t.Fatalf("stored artifact unreadable: %v", err)
	}
	if string(stored) != "merged" {
		t.Errorf("artifact = %q", stored)
	}

	// Overwriting the same name is the idempotent re-delivery path.
	if err := s.StoreArtifact(ctx, "QUOTE_Acme_5_KW.docx", []byte("merged again")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	link, err := s.TemporaryLink(ctx, "QUOTE_Acme_5_KW.docx", time.Minute)
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if !strings.HasPrefix(link, "file://") || !strings.HasSuffix(link, "QUOTE_Acme_5_KW.docx") {
		t.Errorf("link = %q", link)
	}
}

func TestFilesystemStorageStripsPathComponents(t *testing.T) {
	ctx := context.Background()
	templateDir := t.TempDir()
	outputDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(templateDir, "template_hybrid.docx"), []byte("hybrid"), 0644); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	s, err := NewFilesystemStorage(templateDir, outputDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	// Keys are flat object names; any directory prefix is discarded.
	data, err := s.FetchTemplate(ctx, "../../template_hybrid.docx")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "hybrid" {
		t.Errorf("template = %q", data)
	}
}

func TestHasSuffixFold(t *testing.T) {
	if !hasSuffixFold("QUOTE.DOCX", ".docx") {
		t.Error("uppercase extension should match")
	}
	if hasSuffixFold("quote.pdf", ".docx") {
		t.Error("different extension should not match")
	}
	if hasSuffixFold("x", ".docx") {
		t.Error("short name should not match")
	}
}
