package gitutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepositoryURL extracts "owner" and "name" from a repository
// remote URL, HTTPS or SSH, for descriptors that arrive with only a URL
// and no explicit owner/name.
func ParseRepositoryURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "/")

	var path string
	switch {
	case strings.Contains(raw, "://"):
		u, parseErr := url.Parse(raw)
		if parseErr != nil || u.Host == "" {
			return "", "", fmt.Errorf("invalid repository URL %q: %w", raw, parseErr)
		}
		path = strings.TrimPrefix(u.Path, "/")
	case strings.Contains(raw, "@") && strings.Contains(raw, ":"):
		// SSH shorthand: git@github.com:owner/repo.git
		parts := strings.SplitN(raw, ":", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid SSH repository URL %q", raw)
		}
		path = parts[1]
	default:
		// Bare "owner/repo" shorthand.
		path = raw
	}

	path = strings.TrimSuffix(path, ".git")
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[len(segments)-1] == "" || segments[len(segments)-2] == "" {
		return "", "", fmt.Errorf("cannot derive owner/name from repository URL %q", raw)
	}

	name = segments[len(segments)-1]
	owner = segments[len(segments)-2]
	return owner, name, nil
}
