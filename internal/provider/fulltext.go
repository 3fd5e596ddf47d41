package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// FullTextProvider runs BM25 search over chunk content via an in-memory
// bleve index. Grounded on the teacher's
// internal/mcp/exact_searcher.go (bleve mapping + QueryStringQuery).
type FullTextProvider struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewFullTextProvider builds an empty full-text index; call Reload to
// populate it from the store.
func NewFullTextProvider() (*FullTextProvider, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("full-text provider: failed to create bleve index: %w", err)
	}
	return &FullTextProvider{index: idx}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true
	text.Index = true
	text.IncludeTermVectors = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	line := bleve.NewNumericFieldMapping()
	line.Store = true
	line.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("file_path", keyword)
	doc.AddFieldMappingsAt("kind", keyword)
	doc.AddFieldMappingsAt("language", keyword)
	doc.AddFieldMappingsAt("start_line", line)
	doc.AddFieldMappingsAt("end_line", line)

	im.DefaultMapping = doc
	return im
}

// IndexedChunk is one row fed into the full-text index by Reload.
type IndexedChunk struct {
	ChunkID   string
	FilePath  string
	Kind      string
	Language  string
	Text      string
	StartLine int
	EndLine   int
}

// Reload rebuilds the full-text index from scratch. Called after a
// bootstrap sweep or incremental update, mirroring the teacher's
// UpdateIncremental but as a full rebuild since bleve's in-memory index
// has no persisted state to diff against across process restarts.
func (p *FullTextProvider) Reload(ctx context.Context, chunks []IndexedChunk) error {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("full-text provider: failed to create bleve index: %w", err)
	}

	const batchSize = 1000
	batch := idx.NewBatch()
	for i, c := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		doc := map[string]interface{}{
			"text":       c.Text,
			"file_path":  c.FilePath,
			"kind":       c.Kind,
			"language":   c.Language,
			"start_line": c.StartLine,
			"end_line":   c.EndLine,
		}
		if err := batch.Index(c.ChunkID, doc); err != nil {
			return fmt.Errorf("full-text provider: failed to index chunk %s: %w", c.ChunkID, err)
		}
		if batch.Size() >= batchSize || i == len(chunks)-1 {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("full-text provider: batch index failed: %w", err)
			}
			batch = idx.NewBatch()
		}
	}

	p.mu.Lock()
	old := p.index
	p.index = idx
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (p *FullTextProvider) Name() string { return "fulltext" }

func (p *FullTextProvider) GetContext(ctx context.Context, q Query) ([]Snippet, error) {
	k := q.K
	if k <= 0 {
		k = 10
	}

	p.mu.RLock()
	idx := p.index
	p.mu.RUnlock()

	request := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q.Text), k*2, 0, false)
	request.Fields = []string{"text", "file_path", "kind", "language", "start_line", "end_line"}

	result, err := idx.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("full-text provider: search failed: %w", err)
	}

	snippets := make([]Snippet, 0, len(result.Hits))
	for _, hit := range result.Hits {
		text, _ := hit.Fields["text"].(string)
		filePath, _ := hit.Fields["file_path"].(string)
		kind, _ := hit.Fields["kind"].(string)
		language, _ := hit.Fields["language"].(string)
		startLine, _ := hit.Fields["start_line"].(float64)
		endLine, _ := hit.Fields["end_line"].(float64)

		if !matchesFilters(q.Filters, language, filePath, kind) {
			continue
		}
		snippets = append(snippets, Snippet{
			ChunkID:   hit.ID,
			Score:     hit.Score,
			FilePath:  filePath,
			Kind:      kind,
			Text:      text,
			Language:  language,
			StartLine: int(startLine),
			EndLine:   int(endLine),
		})
		if len(snippets) >= k {
			break
		}
	}

	normalizeScores(snippets, true)
	return snippets, nil
}
