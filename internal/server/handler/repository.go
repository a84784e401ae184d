// Package handler provides the HTTP handlers exposing the Repository
// Manager and RAG Engine.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/gitutil"
	"github.com/sevigo/reposync/internal/repomanager"
)

// RepositoryHandler adapts repomanager.RepositoryManager to JSON over HTTP.
type RepositoryHandler struct {
	mgr    repomanager.RepositoryManager
	logger *slog.Logger
}

// NewRepositoryHandler builds a RepositoryHandler.
func NewRepositoryHandler(mgr repomanager.RepositoryManager, logger *slog.Logger) *RepositoryHandler {
	return &RepositoryHandler{mgr: mgr, logger: logger}
}

// registerRequest is the repository-registration request shape. Owner
// and Name are optional overrides; when absent they are derived from
// Repository (the repository's URL).
type registerRequest struct {
	Repository  string            `json:"repository"`
	RepoType    string            `json:"repo_type"`
	AccessToken string            `json:"access_token"`
	AutoIndex   bool              `json:"auto_index"`
	Metadata    map[string]string `json:"metadata"`
	Owner       string            `json:"owner"`
	Name        string            `json:"name"`
}

type registerResponse struct {
	RepositoryID string `json:"repository_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// Register handles "Register repository" ({ repository, repo_type?,
// access_token?, auto_index?, metadata? } -> { repository_id, status,
// message }).
func (h *RepositoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	kind := core.ProviderKind(req.RepoType)
	if kind == "" {
		kind = core.ProviderGitHub
	}

	desc := core.RepositoryDescriptor{
		Provider:    kind,
		Owner:       req.Owner,
		Name:        req.Name,
		URL:         req.Repository,
		AccessToken: req.AccessToken,
		Config:      core.DefaultRepoConfig(),
	}
	if kind != core.ProviderLocal && (desc.Owner == "" || desc.Name == "") {
		owner, name, err := gitutil.ParseRepositoryURL(desc.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("derive owner/name from repository url: %w", err))
			return
		}
		if desc.Owner == "" {
			desc.Owner = owner
		}
		if desc.Name == "" {
			desc.Name = name
		}
	}

	opts := repomanager.RegisterOptions{AutoIndex: req.AutoIndex, Metadata: req.Metadata}
	rec, err := h.mgr.Register(r.Context(), desc, opts, principal(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	msg := "registration accepted"
	if req.AutoIndex {
		msg = "registration accepted, indexing queued"
	}
	writeJSON(w, http.StatusAccepted, registerResponse{
		RepositoryID: rec.ID.String(),
		Status:       string(rec.Status),
		Message:      msg,
	})
}

type repositoryInfoResponse struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	RepoType  string     `json:"repo_type"`
	Status    string     `json:"status"`
	Progress  float64    `json:"progress"`
	CreatedAt time.Time  `json:"created_at"`
	IndexedAt *time.Time `json:"indexed_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	Metadata  map[string]string `json:"metadata"`
}

func infoFromRecord(rec *core.RepositoryRecord) repositoryInfoResponse {
	return repositoryInfoResponse{
		ID:        rec.ID.String(),
		URL:       rec.Descriptor.URL,
		RepoType:  string(rec.Descriptor.Provider),
		Status:    string(rec.Status),
		Progress:  rec.Progress,
		CreatedAt: rec.CreatedAt,
		IndexedAt: rec.IndexedAt,
		UpdatedAt: rec.UpdatedAt,
		Metadata:  rec.Metadata,
	}
}

// Get handles "Get repository info" (id -> { id, url, repo_type, status,
// progress, created_at, indexed_at?, updated_at, metadata }).
func (h *RepositoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := h.mgr.Get(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infoFromRecord(rec))
}

// List returns every registered repository's info.
func (h *RepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.mgr.List(r.Context())
	if err != nil {
		writeCoreError(w, err)
		return
	}
	out := make([]repositoryInfoResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, infoFromRecord(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type deleteResponse struct {
	Status               string `json:"status"`
	Message              string `json:"message"`
	DeletedRepositoryID   string `json:"deleted_repository_id"`
}

// Delete handles "Delete repository" (id -> { status, message,
// deleted_repository_id }).
func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.Delete(r.Context(), id, principal(r)); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Status:              "deleted",
		Message:             "repository and its indexed vectors were removed",
		DeletedRepositoryID: id.String(),
	})
}

type reindexResponse struct {
	RepositoryID string `json:"repository_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// Reindex handles "Reindex" (id -> { repository_id, status, message }).
func (h *RepositoryHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.Reindex(r.Context(), id, principal(r)); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reindexResponse{
		RepositoryID: id.String(),
		Status:       string(core.StatusIndexing),
		Message:      "reindex queued",
	})
}

// Events streams progress broadcast frames ({ type: "index_progress",
// repository_id, progress, current_file }, current_file carrying the
// update's message) as server-sent events until the client disconnects or
// indexing reaches a terminal state. The frames do not report
// files_processed or total_files.
func (h *RepositoryHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updates, unsub, err := h.mgr.Subscribe(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	defer unsub()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			frame := map[string]any{
				"type":          "index_progress",
				"repository_id": update.RepositoryID.String(),
				"progress":      update.Progress,
				"current_file":  update.Message,
			}
			data, _ := json.Marshal(frame)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if update.Status == core.StatusCompleted || update.Status == core.StatusFailed || update.Status == core.StatusCancelled {
				return
			}
		}
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid repository id: %w", err)
	}
	return id, nil
}

func principal(r *http.Request) string {
	if p := r.Header.Get("X-Principal"); p != "" {
		return p
	}
	return "anonymous"
}
