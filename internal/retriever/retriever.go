package retriever

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"airsupport/internal/config"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var ErrEmptyFAQ = errors.New("faq document has no content")

// embedBatchSize stays under the per-request input limit of both providers.
const embedBatchSize = 64

type Option func(*Retriever)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Retriever) { r.client = client }
}

// Retriever answers policy questions with the FAQ sections closest to the
// query. The chunk set is fixed once New returns.
type Retriever struct {
	embedder Embedder
	chunks   []chunk
	topK     int
	client   *http.Client
	logger   *zerolog.Logger
}

// New loads the persisted index from cfg.IndexDir, or builds it from the FAQ
// document when none exists for the configured model.
func New(ctx context.Context, cfg config.RetrieverConfig, embedder Embedder, logger *zerolog.Logger, opts ...Option) (*Retriever, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Retriever{
		embedder: embedder,
		topK:     cfg.TopK,
		client:   http.DefaultClient,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.topK <= 0 {
		r.topK = 2
	}

	store, err := newIndexStore(cfg.IndexDir)
	if err != nil {
		return nil, err
	}

	chunks, err := store.load(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		r.chunks = chunks
		logger.Info().Int("chunks", len(chunks)).Str("dir", cfg.IndexDir).Msg("Policy index loaded")
		return r, nil
	}

	fetchCtx := ctx
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	logger.Info().Str("url", cfg.FAQURL).Msg("Building policy index")
	text, err := FetchFAQ(fetchCtx, r.client, cfg.FAQURL)
	if err != nil {
		return nil, err
	}

	docs := SplitFAQ(text)
	if len(docs) == 0 {
		return nil, ErrEmptyFAQ
	}

	chunks, err = r.embedAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	if err := store.save(ctx, cfg.Model, chunks); err != nil {
		return nil, fmt.Errorf("failed to persist policy index: %w", err)
	}

	r.chunks = chunks
	logger.Info().Int("chunks", len(chunks)).Str("dir", cfg.IndexDir).Msg("Policy index built")
	return r, nil
}

func (r *Retriever) embedAll(ctx context.Context, docs []string) ([]chunk, error) {
	out := make([]chunk, 0, len(docs))
	for _, batch := range lo.Chunk(docs, embedBatchSize) {
		vectors, err := r.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			out = append(out, newChunk(batch[i], v))
		}
	}
	return out, nil
}

// Len is the number of indexed chunks.
func (r *Retriever) Len() int {
	return len(r.chunks)
}

// Query returns up to k chunk texts ordered by decreasing cosine similarity.
// Ties keep document order.
func (r *Retriever) Query(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 || len(r.chunks) == 0 {
		return []string{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for query", ErrEmbedding, len(vectors))
	}
	q := vectors[0]
	qNorm := norm(q)

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(r.chunks))
	for i, c := range r.chunks {
		scores[i] = scored{idx: i, score: cosine(q, qNorm, c.vector, c.norm)}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	return lo.Map(scores[:min(k, len(scores))], func(s scored, _ int) string {
		return r.chunks[s.idx].text
	}), nil
}

// Lookup is the lookup_policy tool: the top chunks joined by blank lines.
func (r *Retriever) Lookup(ctx context.Context, query string) (string, error) {
	docs, err := r.Query(ctx, query, r.topK)
	if err != nil {
		return "", err
	}
	return strings.Join(docs, "\n\n"), nil
}
