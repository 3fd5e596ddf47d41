// Package embedclient implements the batch embedding client of spec §4.10:
// order-preserving, fixed-dimension, optional unit-norm output, with
// per-batch retry and an optional embedding cache. Grounded on the
// teacher's internal/embed package (Provider interface, local HTTP
// subprocess client, batch-with-progress helper), generalized to the
// spec's retry/normalize/cache requirements.
package embedclient

import "context"

// Mode mirrors the teacher's query/passage embedding-mode split.
type Mode string

const (
	ModeQuery   Mode = "query"
	ModePassage Mode = "passage"
)

// Provider embeds a batch of texts into fixed-dimension vectors.
// Implementations guarantee: output length equals input length and is in
// the same order, and every vector has len == Dimensions().
type Provider interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	Dimensions() int
	Close() error
}
