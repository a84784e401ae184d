package llmclient

import (
	"context"

	"google.golang.org/genai"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
)

// geminiGenerator wraps the official google.golang.org/genai SDK's content
// generation endpoint, mirroring internal/embedder/gemini.go's embeddings
// use of the same client.
type geminiGenerator struct {
	client *genai.Client
	model  string
	retry  retry.Config
}

// NewGemini builds a core.Generator backed by the Gemini generateContent API.
func NewGemini(ctx context.Context, apiKey, model string) (core.Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewError(core.KindConfig, "gemini.new", err)
	}
	return &geminiGenerator{client: client, model: model, retry: retry.DefaultConfig()}, nil
}

func (g *geminiGenerator) ModelName() string { return g.model }

func (g *geminiGenerator) config(temperature float64, maxTokens int) *genai.GenerateContentConfig {
	temp := float32(temperature)
	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
	}
}

// Generate issues one completion call, retrying transient failures under
// the shared backoff discipline.
func (g *geminiGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, core.TokenUsage, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, g.retry, core.IsRetryable, func(ctx context.Context) error {
		got, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config(temperature, maxTokens))
		if err != nil {
			return core.NewError(core.KindNetwork, "gemini.generate", err)
		}
		resp = got
		return nil
	})
	if err != nil {
		return "", core.TokenUsage{}, err
	}

	var usage core.TokenUsage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), usage, nil
}

// Stream ranges over the SDK's streaming iterator and forwards each
// response's text delta. A failure before the first token is retried
// under the shared backoff discipline; once any text has been forwarded
// the answer cannot be replayed, so later failures surface on the error
// channel. Both channels are closed once the iterator is exhausted or an
// error occurs.
func (g *geminiGenerator) Stream(ctx context.Context, prompt string, temperature float64, maxTokens int) (<-chan string, <-chan error) {
	content := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(content)
		defer close(errc)

		contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
		emitted := false
		classify := func(err error) bool { return !emitted && core.IsRetryable(err) }
		err := retry.Do(ctx, g.retry, classify, func(ctx context.Context) error {
			for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.config(temperature, maxTokens)) {
				if err != nil {
					return core.NewError(core.KindNetwork, "gemini.stream", err)
				}
				text := resp.Text()
				if text == "" {
					continue
				}
				select {
				case content <- text:
					emitted = true
				case <-ctx.Done():
					return core.NewError(core.KindCancelled, "gemini.stream", ctx.Err())
				}
			}
			return nil
		})
		if err != nil {
			errc <- err
		}
	}()

	return content, errc
}
