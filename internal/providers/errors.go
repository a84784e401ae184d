// Package providers implements one adapter per supported hosting platform
// (GitHub, GitLab, Bitbucket, Gitea, and a degenerate Local adapter), all
// satisfying the core.Provider capability set behind a single factory.
package providers

import (
	"fmt"
	"net/http"

	"github.com/sevigo/reposync/internal/core"
)

// classifyStatus translates an HTTP status code into the shared error
// taxonomy: 401->Unauthorized, 403->Forbidden (rate-limit suggestion),
// 404->NotFound, other non-2xx->KindNetwork carrying a snippet of the
// response body.
func classifyStatus(op string, status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	switch status {
	case http.StatusUnauthorized:
		return &core.CoreError{Kind: core.KindUnauthorized, Op: op, Err: fmt.Errorf("unauthorized (status %d)", status)}
	case http.StatusForbidden:
		return &core.CoreError{
			Kind:       core.KindForbidden,
			Op:         op,
			Err:        fmt.Errorf("forbidden (status %d): %s", status, snippet),
			Suggestion: "check that the access token is valid and has not exceeded its rate limit",
		}
	case http.StatusNotFound:
		return &core.CoreError{Kind: core.KindNotFound, Op: op, Err: fmt.Errorf("not found (status %d)", status)}
	default:
		return &core.CoreError{Kind: core.KindNetwork, Op: op, Err: fmt.Errorf("unexpected status %d: %s", status, snippet)}
	}
}
