package embedclient

import (
	"context"
	"fmt"
	"time"
)

// Progress reports batch-embedding progress, mirroring the teacher's
// embed.BatchProgress shape.
type Progress struct {
	BatchIndex      int
	TotalBatches    int
	ProcessedChunks int
	TotalChunks     int
}

// RetryConfig governs per-batch retry behavior (spec §4.10/§7: "per-batch
// deadline with retry_attempts retries and linear backoff").
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
	Deadline time.Duration
}

// DefaultRetryConfig matches the spec's defaults section.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Backoff: 500 * time.Millisecond, Deadline: 30 * time.Second}
}

// EmbedWithProgress embeds texts in batches, retrying each batch with
// linear backoff on failure, optionally reporting progress, optionally
// normalizing output, and optionally consulting a Cache keyed by
// (model, contentHash, ordinal), where the ordinal is each text's index in
// texts. hashes, if non-nil, must be the same length as texts.
func EmbedWithProgress(
	ctx context.Context,
	provider Provider,
	model string,
	texts []string,
	hashes []string,
	mode Mode,
	batchSize int,
	normalize bool,
	cache Cache,
	retry RetryConfig,
	progressCh chan<- Progress,
) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return nil, nil
	}
	results := make([][]float32, total)
	pending := make([]int, 0, total)

	if cache != nil && hashes != nil {
		for i := range texts {
			if v, ok := cache.Get(model, hashes[i], i); ok {
				results[i] = v
				continue
			}
			pending = append(pending, i)
		}
	} else {
		for i := range texts {
			pending = append(pending, i)
		}
	}

	numBatches := (len(pending) + batchSize - 1) / batchSize
	processed := total - len(pending)

	for b := 0; b < numBatches; b++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := b * batchSize
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		idxs := pending[start:end]
		batchTexts := make([]string, len(idxs))
		for i, idx := range idxs {
			batchTexts[i] = texts[idx]
		}

		vectors, err := embedBatchWithRetry(ctx, provider, batchTexts, mode, retry)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", b+1, numBatches, err)
		}
		if normalize {
			Normalize(vectors)
		}

		for i, idx := range idxs {
			results[idx] = vectors[i]
			if cache != nil && hashes != nil {
				cache.Put(model, hashes[idx], idx, vectors[i])
			}
		}

		processed += len(idxs)
		if progressCh != nil {
			progressCh <- Progress{
				BatchIndex:      b + 1,
				TotalBatches:    numBatches,
				ProcessedChunks: processed,
				TotalChunks:     total,
			}
		}
	}

	return results, nil
}

// embedBatchWithRetry applies a per-batch deadline and linear backoff
// across retry.Attempts attempts, per spec §7's cancellation/timeout
// section.
func embedBatchWithRetry(ctx context.Context, provider Provider, texts []string, mode Mode, retry RetryConfig) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < retry.Attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, retry.Deadline)
		vectors, err := provider.Embed(callCtx, texts, mode)
		cancel()
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if attempt < retry.Attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Backoff * time.Duration(attempt+1)):
			}
		}
	}
	return nil, lastErr
}
