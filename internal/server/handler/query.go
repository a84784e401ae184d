package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/rag"
)

// QueryHandler adapts the RAG Engine's Answer/Stream calls to JSON and SSE
// over HTTP.
type QueryHandler struct {
	engine *rag.Engine
	logger *slog.Logger
}

// NewQueryHandler builds a QueryHandler.
func NewQueryHandler(engine *rag.Engine, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

// queryRequestBody is the query request shape ({ repository_id,
// question, max_results?, context? }).
type queryRequestBody struct {
	RepositoryID string   `json:"repository_id"`
	Question     string   `json:"question"`
	MaxResults   int      `json:"max_results"`
	Context      []string `json:"context"`
}

type source struct {
	Path  string  `json:"path"`
	Span  [2]int  `json:"span"`
	Score float64 `json:"score"`
}

type queryResponseBody struct {
	Answer       string    `json:"answer"`
	Sources      []source  `json:"sources"`
	RepositoryID string    `json:"repository_id"`
	Timestamp    time.Time `json:"timestamp"`
}

func (b queryRequestBody) toRequest() (core.QueryRequest, error) {
	id, err := uuid.Parse(b.RepositoryID)
	if err != nil {
		return core.QueryRequest{}, fmt.Errorf("invalid repository_id: %w", err)
	}
	return core.QueryRequest{
		RepositoryID: id,
		Question:     b.Question,
		TopK:         b.MaxResults,
		Context:      b.Context,
	}, nil
}

func sourcesFromCitations(citations []core.Citation) []source {
	out := make([]source, 0, len(citations))
	for _, c := range citations {
		out = append(out, source{Path: c.Path, Span: [2]int{c.Start, c.End}, Score: c.Score})
	}
	return out
}

// Ask handles "Query" ({ repository_id, question, max_results?, context? }
// -> { answer, sources, repository_id, timestamp }).
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := h.engine.Answer(r.Context(), req)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponseBody{
		Answer:       resp.Answer,
		Sources:      sourcesFromCitations(resp.Citations),
		RepositoryID: req.RepositoryID.String(),
		Timestamp:    time.Now().UTC(),
	})
}

// streamFrameBody is the streaming query frame shape ({ chunk_type,
// content, is_final, sources? }); no metadata field is emitted.
type streamFrameBody struct {
	ChunkType string    `json:"chunk_type"`
	Content   string    `json:"content,omitempty"`
	IsFinal   bool      `json:"is_final"`
	Sources   []source  `json:"sources,omitempty"`
}

// Stream handles "Streaming query", emitting one JSON frame per
// server-sent event.
func (h *QueryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for frame := range h.engine.Stream(r.Context(), req) {
		body := streamFrameBody{IsFinal: frame.IsFinal}
		switch frame.Kind {
		case core.StreamContent:
			body.ChunkType = "Content"
			body.Content = frame.Content
		case core.StreamSource:
			body.ChunkType = "Source"
			if frame.Source != nil {
				body.Sources = []source{{Path: frame.Source.Path, Span: [2]int{frame.Source.Start, frame.Source.End}, Score: frame.Source.Score}}
			}
		case core.StreamError:
			body.ChunkType = "Error"
			if frame.Err != nil {
				body.Content = frame.Err.Error()
			}
		case core.StreamComplete:
			body.ChunkType = "Complete"
		}
		data, _ := json.Marshal(body)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
