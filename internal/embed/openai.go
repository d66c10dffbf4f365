package embed

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Vector store schema is fixed at 768 dimensions; the API is asked to
// down-project to match.
const (
	EmbeddingDimensions = 768
	embedTimeout        = 500 * time.Millisecond
)

// OpenAIEmbedder calls the embeddings API with a hard per-call deadline so
// a slow provider can never stall the write path.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

// NewOpenAI builds the production embedder.
func NewOpenAI(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:  openai.NewClient(apiKey),
		model:   openai.SmallEmbedding3,
		timeout: embedTimeout,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}

	vec := resp.Data[0].Embedding
	if err := ValidateDimensions(vec, EmbeddingDimensions); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return EmbeddingDimensions }

func (e *OpenAIEmbedder) Name() string { return string(e.model) }
