package retriever

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiEmbedder calls the Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: client.EmbeddingModel(model)}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbedding, len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: empty vector at %d", ErrEmbedding, i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

func classifyGeminiError(err error) error {
	if status.Code(err) == codes.ResourceExhausted {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrEmbedding, err)
}
