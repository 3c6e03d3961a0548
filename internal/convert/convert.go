// Package convert defines the document conversion capability and a Gotenberg
// HTTP implementation. Conversion is injected so it can be swapped for a
// different service or stubbed in tests.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Converter turns a .docx document into a fixed-layout PDF.
type Converter interface {
	ConvertToPDF(ctx context.Context, docxBytes []byte) ([]byte, error)
}

// DefaultTimeout bounds a single conversion request.
const DefaultTimeout = 60 * time.Second

// Gotenberg converts documents through a Gotenberg server's LibreOffice route.
type Gotenberg struct {
	baseURL string
	client  *http.Client
}

// NewGotenberg creates a converter for the Gotenberg server at baseURL.
func NewGotenberg(baseURL string) *Gotenberg {
	return &Gotenberg{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// ConvertToPDF posts the document to /forms/libreoffice/convert and returns
// the PDF bytes.
func (g *Gotenberg) ConvertToPDF(ctx context.Context, docxBytes []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "document.docx")
	if err != nil {
		return nil, fmt.Errorf("failed to build conversion request: %w", err)
	}
	if _, err := fw.Write(docxBytes); err != nil {
		return nil, fmt.Errorf("failed to build conversion request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build conversion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/forms/libreoffice/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Error("Gotenberg conversion request failed", "error", err)
		return nil, fmt.Errorf("conversion request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("Gotenberg conversion rejected", "status", resp.StatusCode)
		return nil, fmt.Errorf("conversion failed with status %d", resp.StatusCode)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted document: %w", err)
	}
	slog.Debug("Gotenberg conversion succeeded", "pdf_bytes", len(pdf))
	return pdf, nil
}
