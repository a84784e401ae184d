package vectorstore

import (
	"fmt"
	"regexp"
	"strings"
)

var collectionNameDisallowed = regexp.MustCompile("[^a-z0-9_-]+")

// GenerateCollectionName derives a Qdrant-safe collection name from a
// repository key and embedder model, so a repository reindexed under a
// different embedder gets its own collection rather than mixing
// incompatible vector dimensions. Callers pass the repository ID as the
// key; a key containing "/" (an "owner/repo" name) is also accepted.
func GenerateCollectionName(repoFullName, embedderName string) string {
	safeRepo := strings.ToLower(strings.ReplaceAll(repoFullName, "/", "-"))
	safeEmbedder := strings.ToLower(strings.Split(embedderName, ":")[0])
	safeRepo = collectionNameDisallowed.ReplaceAllString(safeRepo, "")
	safeEmbedder = collectionNameDisallowed.ReplaceAllString(safeEmbedder, "")
	name := fmt.Sprintf("repo-%s-%s", safeRepo, safeEmbedder)
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
