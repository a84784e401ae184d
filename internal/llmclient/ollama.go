package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
)

// ollamaGenerator talks to a running Ollama server's /api/generate
// endpoint, with the same transport tuning as the Ollama embedder:
// bounded idle connections and a generous overall timeout.
type ollamaGenerator struct {
	http    *http.Client
	baseURL string
	model   string
	retry   retry.Config
}

// NewOllama builds a core.Generator backed by a local Ollama server.
func NewOllama(baseURL, model string) core.Generator {
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
	return &ollamaGenerator{
		http:    &http.Client{Transport: transport, Timeout: 15 * time.Minute},
		baseURL: baseURL,
		model:   model,
		retry:   retry.DefaultConfig(),
	}
}

type ollamaGenerateRequest struct {
	Model       string               `json:"model"`
	Prompt      string               `json:"prompt"`
	Stream      bool                 `json:"stream"`
	Options     ollamaGenerateOptions `json:"options,omitempty"`
}

type ollamaGenerateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (g *ollamaGenerator) ModelName() string { return g.model }

func (g *ollamaGenerator) newRequest(ctx context.Context, prompt string, temperature float64, maxTokens int, stream bool) (*http.Request, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: stream,
		Options: ollamaGenerateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return nil, core.NewError(core.KindValidation, "ollama.generate", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, core.NewError(core.KindConfig, "ollama.generate", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate issues one completion call, retrying transient transport and
// server failures under the shared backoff discipline.
func (g *ollamaGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, core.TokenUsage, error) {
	var out ollamaGenerateChunk
	err := retry.Do(ctx, g.retry, core.IsRetryable, func(ctx context.Context) error {
		req, err := g.newRequest(ctx, prompt, temperature, maxTokens, false)
		if err != nil {
			return err
		}

		resp, err := g.http.Do(req)
		if err != nil {
			return core.NewError(core.KindNetwork, "ollama.generate", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return core.NewError(core.KindNetwork, "ollama.generate", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return core.NewErrorf(core.KindNetwork, "ollama.generate", "status %d: %s", resp.StatusCode, respBody)
		}

		if err := json.Unmarshal(respBody, &out); err != nil {
			return core.NewError(core.KindMalformed, "ollama.generate", err)
		}
		if out.Error != "" {
			return core.NewErrorf(core.KindNetwork, "ollama.generate", "%s", out.Error)
		}
		return nil
	})
	if err != nil {
		return "", core.TokenUsage{}, err
	}
	usage := core.TokenUsage{PromptTokens: out.PromptEvalCount, CompletionTokens: out.EvalCount}
	return out.Response, usage, nil
}

// Stream issues a streaming request and decodes Ollama's newline-delimited
// JSON response, forwarding each chunk's text onto the returned channel.
// Establishing the stream (request plus status check) is retried under the
// shared backoff discipline; once tokens are flowing a failure cannot be
// replayed and surfaces on the error channel. Both channels are closed
// once the response body is exhausted or an error occurs; callers must
// drain both.
func (g *ollamaGenerator) Stream(ctx context.Context, prompt string, temperature float64, maxTokens int) (<-chan string, <-chan error) {
	content := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(content)
		defer close(errc)

		var resp *http.Response
		err := retry.Do(ctx, g.retry, core.IsRetryable, func(ctx context.Context) error {
			req, err := g.newRequest(ctx, prompt, temperature, maxTokens, true)
			if err != nil {
				return err
			}
			r, err := g.http.Do(req)
			if err != nil {
				return core.NewError(core.KindNetwork, "ollama.stream", err)
			}
			if r.StatusCode < 200 || r.StatusCode >= 300 {
				body, _ := io.ReadAll(r.Body)
				r.Body.Close()
				return core.NewErrorf(core.KindNetwork, "ollama.stream", "status %d: %s", r.StatusCode, body)
			}
			resp = r
			return nil
		})
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaGenerateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				errc <- core.NewError(core.KindMalformed, "ollama.stream", err)
				return
			}
			if chunk.Error != "" {
				errc <- core.NewErrorf(core.KindNetwork, "ollama.stream", "%s", chunk.Error)
				return
			}
			if chunk.Response != "" {
				select {
				case content <- chunk.Response:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- core.NewError(core.KindNetwork, "ollama.stream", err)
		}
	}()

	return content, errc
}
