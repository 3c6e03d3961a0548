// Package merge turns a completed answer-set into delivered quotation
// documents: it derives the price-in-words and date fields, substitutes
// placeholders into the variant's template, stores the artifacts and obtains
// time-limited download links.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brightvolt/quotebot/internal/convert"
	"github.com/brightvolt/quotebot/internal/docx"
	"github.com/brightvolt/quotebot/internal/models"
	"github.com/brightvolt/quotebot/internal/storage"
	"github.com/brightvolt/quotebot/internal/words"
)

// DateLayout is the DD-MM-YYYY format embedded in generated quotations.
const DateLayout = "02-01-2006"

// DefaultTemplateKeys maps the inverter type answer to its template object.
var DefaultTemplateKeys = map[string]string{
	"On-Grid": "template_ongrid.docx",
	"Hybrid":  "template_hybrid.docx",
}

// Opts holds configuration options for the Merger.
type Opts struct {
	TemplateKeys map[string]string
	Converter    convert.Converter
	LinkTTL      time.Duration
	Now          func() time.Time
}

// Option defines a configuration option for the Merger.
type Option func(*Opts)

// WithTemplateKeys overrides the variant-to-template mapping.
func WithTemplateKeys(keys map[string]string) Option {
	return func(o *Opts) { o.TemplateKeys = keys }
}

// WithConverter enables PDF conversion of the merged document.
func WithConverter(c convert.Converter) Option {
	return func(o *Opts) { o.Converter = c }
}

// WithLinkTTL sets the lifetime of generated download links.
func WithLinkTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.LinkTTL = ttl }
}

// WithClock injects the time source used for the DATE field.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Merger orchestrates template merge and artifact delivery preparation.
type Merger struct {
	templates    storage.TemplateSource
	artifacts    storage.ArtifactStore
	templateKeys map[string]string
	converter    convert.Converter
	linkTTL      time.Duration
	now          func() time.Time
}

// New creates a Merger over the given collaborators.
func New(templates storage.TemplateSource, artifacts storage.ArtifactStore, opts ...Option) *Merger {
	cfg := Opts{
		TemplateKeys: DefaultTemplateKeys,
		LinkTTL:      storage.DefaultLinkTTL,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Merger{
		templates:    templates,
		artifacts:    artifacts,
		templateKeys: cfg.TemplateKeys,
		converter:    cfg.Converter,
		linkTTL:      cfg.LinkTTL,
		now:          cfg.Now,
	}
}

// Generate merges the answer-set into the variant's template and returns the
// stored artifacts with their download links.
//
// Re-running with the same answer-set is safe: names are deterministic and
// storage is a whole-object overwrite. When PDF conversion fails the .docx
// artifact is still returned, alongside an ErrConversionFailure the caller
// should surface without discarding the document link.
func (m *Merger) Generate(ctx context.Context, answers map[models.Field]string) ([]models.Artifact, error) {
	slog.Debug("Merger Generate", "answers", len(answers))

	values, err := m.deriveFields(answers)
	if err != nil {
		return nil, err
	}

	variant := answers[models.FieldInverterType]
	if variant == "" {
		variant = "On-Grid"
	}
	templateKey, ok := m.templateKeys[variant]
	if !ok {
		slog.Error("Merger has no template for variant", "variant", variant)
		return nil, fmt.Errorf("%w: no template for %q", models.ErrTemplateMissing, variant)
	}
	template, err := m.templates.FetchTemplate(ctx, templateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTemplateMissing, err)
	}

	merged, err := docx.ReplacePlaceholders(template, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMergeFailure, err)
	}

	name := ArtifactName(answers)
	docxArtifact, err := m.storeAndLink(ctx, name, merged)
	if err != nil {
		return nil, err
	}
	artifacts := []models.Artifact{docxArtifact}
	slog.Info("Merger generated quotation", "name", name, "variant", variant)

	if m.converter == nil {
		return artifacts, nil
	}
	pdf, err := m.converter.ConvertToPDF(ctx, merged)
	if err != nil {
		slog.Error("Merger PDF conversion failed", "error", err, "name", name)
		return artifacts, fmt.Errorf("%w: %v", models.ErrConversionFailure, err)
	}
	pdfName := strings.TrimSuffix(name, ".docx") + ".pdf"
	pdfArtifact, err := m.storeAndLink(ctx, pdfName, pdf)
	if err != nil {
		return artifacts, fmt.Errorf("%w: %v", models.ErrConversionFailure, err)
	}
	return append(artifacts, pdfArtifact), nil
}

// deriveFields re-validates the price and produces the flat string map handed
// to the substitution, including the derived fields.
func (m *Merger) deriveFields(answers map[models.Field]string) (map[string]string, error) {
	price, err := strconv.ParseInt(answers[models.FieldPrice], 10, 64)
	if err != nil || price < 0 {
		slog.Error("Merger price re-validation failed", "price", answers[models.FieldPrice])
		return nil, fmt.Errorf("%w: price %q is not a non-negative integer", models.ErrMergeFailure, answers[models.FieldPrice])
	}
	inWords, err := words.AmountInWords(price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMergeFailure, err)
	}

	values := make(map[string]string, len(answers)+2)
	for k, v := range answers {
		values[string(k)] = v
	}
	values[string(models.FieldPriceInWords)] = inWords
	values[string(models.FieldDate)] = m.now().Format(DateLayout)
	return values, nil
}

func (m *Merger) storeAndLink(ctx context.Context, name string, data []byte) (models.Artifact, error) {
	if err := m.artifacts.StoreArtifact(ctx, name, data); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: %v", models.ErrDeliveryFailure, err)
	}
	url, err := m.artifacts.TemporaryLink(ctx, name, m.linkTTL)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: %v", models.ErrDeliveryFailure, err)
	}
	return models.Artifact{Name: name, URL: url}, nil
}

// ArtifactName builds the deterministic output filename from the client name
// and capacity answers, with whitespace replaced by underscores.
func ArtifactName(answers map[models.Field]string) string {
	client := strings.ReplaceAll(strings.TrimSpace(answers[models.FieldClientName]), " ", "_")
	capacity := strings.ReplaceAll(strings.TrimSpace(answers[models.FieldCapacity]), " ", "_")
	return fmt.Sprintf("QUOTE_%s_%s.docx", client, capacity)
}
