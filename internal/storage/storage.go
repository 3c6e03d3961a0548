// Package storage provides template and artifact object storage for QuoteBot.
//
// Templates are read from one bucket (or directory) and generated quotations
// are written to another, with short-lived download links for delivery.
package storage

import (
	"context"
	"time"
)

// DefaultLinkTTL is how long a generated download link stays valid.
const DefaultLinkTTL = 15 * time.Minute

// TemplateSource retrieves quotation templates by object key.
type TemplateSource interface {
	FetchTemplate(ctx context.Context, key string) ([]byte, error)
}

// ArtifactStore persists generated documents and hands out retrieval links.
// Artifact names are deterministic, so re-storing the same name is a safe
// overwrite.
type ArtifactStore interface {
	StoreArtifact(ctx context.Context, name string, data []byte) error
	TemporaryLink(ctx context.Context, name string, ttl time.Duration) (string, error)
}
