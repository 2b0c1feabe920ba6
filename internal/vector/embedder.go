package vector

import (
	"context"
	"fmt"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/llm"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// Embedder embeds function specifications and answers similarity queries.
type Embedder struct {
	provider llm.Provider
	repo     Repository
}

// NewEmbedder creates an Embedder.
func NewEmbedder(provider llm.Provider, repo Repository) *Embedder {
	return &Embedder{provider: provider, repo: repo}
}

// IndexProject embeds every function with a non-empty specification and
// upserts the results, keyed by unique ID.
func (e *Embedder) IndexProject(ctx context.Context, p *model.Project) (int, error) {
	var texts []string
	var fns []*model.Function
	for _, fn := range p.Functions {
		if fn.Specification.Text == "" {
			continue
		}
		texts = append(texts, fn.Specification.Text)
		fns = append(fns, fn)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	docs := make([]Document, len(texts))
	for i := range texts {
		docs[i] = Document{
			ID:      fns[i].UniqueID,
			Content: texts[i],
			Vector:  vectors[i],
			Metadata: map[string]string{
				"identifier": fns[i].Identifier.Text,
			},
		}
	}
	if err := e.repo.Upsert(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Related returns the specification texts most similar to the query text,
// labeled with their function identifiers. Satisfies generate.ContextRetriever.
func (e *Embedder) Related(ctx context.Context, text string, topK int) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	vectors, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	results, err := e.repo.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, fmt.Sprintf("%s: %s", r.Metadata["identifier"], r.Content))
	}
	return out, nil
}
