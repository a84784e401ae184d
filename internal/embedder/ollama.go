package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/reposync/internal/core"
)

// ollamaEmbedder talks to a running Ollama server's /api/embeddings
// endpoint over a tuned transport: bounded idle connections and a
// generous overall timeout, since local models can be slow on first
// load.
type ollamaEmbedder struct {
	http      *http.Client
	baseURL   string
	model     string
	dimension int
}

// NewOllama builds a core.Embedder backed by a local Ollama server.
// dimension is the known output size for model (e.g. 768 for
// nomic-embed-text); Ollama's API does not report it, so the caller
// supplies it from configuration.
func NewOllama(baseURL, model string, dimension int) core.Embedder {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &ollamaEmbedder{
		http:      &http.Client{Transport: transport, Timeout: 15 * time.Minute},
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, core.NewError(core.KindValidation, "ollama.embed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewError(core.KindConfig, "ollama.embed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "ollama.embed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "ollama.embed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewErrorf(core.KindNetwork, "ollama.embed", "status %d: %s", resp.StatusCode, respBody)
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, core.NewError(core.KindMalformed, "ollama.embed", err)
	}
	if out.Error != "" {
		return nil, core.NewErrorf(core.KindNetwork, "ollama.embed", "%s", out.Error)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, core.NewErrorf(core.KindMalformed, "ollama.embed", "expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

func (e *ollamaEmbedder) Dimension() int    { return e.dimension }
func (e *ollamaEmbedder) ModelName() string { return e.model }
