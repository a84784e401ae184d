package embedder

import (
	"context"

	"google.golang.org/genai"

	"github.com/sevigo/reposync/internal/core"
)

// geminiEmbedder wraps the official google.golang.org/genai SDK's
// embedding endpoint.
type geminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGemini builds a core.Embedder backed by the Gemini embeddings API.
func NewGemini(ctx context.Context, apiKey, model string, dimension int) (core.Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewError(core.KindConfig, "gemini.new", err)
	}
	return &geminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

func (e *geminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "gemini.embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, core.NewErrorf(core.KindMalformed, "gemini.embed", "expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *geminiEmbedder) Dimension() int    { return e.dimension }
func (e *geminiEmbedder) ModelName() string { return e.model }
