package rag

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// promptFiles embeds the question-answering prompt templates, keyed by
// model provider so a future provider-specific phrasing can be dropped
// in without touching the engine.
//
//go:embed prompts/*.prompt
var promptFiles embed.FS

// ModelProvider selects a provider-specific prompt variant.
type ModelProvider string

// DefaultProvider is used when no variant exists for the requested provider.
const DefaultProvider ModelProvider = "default"

type promptManager struct {
	templates map[ModelProvider]*template.Template
}

func newPromptManager() (*promptManager, error) {
	pm := &promptManager{templates: make(map[ModelProvider]*template.Template)}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		fileName := file.Name()
		baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		lastUnderscore := strings.LastIndex(baseName, "_")
		if lastUnderscore == -1 || lastUnderscore == 0 || lastUnderscore == len(baseName)-1 {
			return nil, fmt.Errorf("invalid prompt filename format: %s (expected 'key_provider.prompt')", fileName)
		}
		provider := ModelProvider(baseName[lastUnderscore+1:])

		content, err := promptFiles.ReadFile("prompts/" + fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", fileName, err)
		}
		tmpl, err := template.New(fileName).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("could not parse prompt template %s: %w", fileName, err)
		}
		pm.templates[provider] = tmpl
	}
	return pm, nil
}

type questionPromptData struct {
	Question     string
	Context      string
	History      string
	Instructions string
}

func (pm *promptManager) render(provider ModelProvider, data questionPromptData) (string, error) {
	tmpl, ok := pm.templates[provider]
	if !ok {
		tmpl, ok = pm.templates[DefaultProvider]
	}
	if !ok {
		return "", fmt.Errorf("no question prompt template available for provider %q", provider)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render question prompt: %w", err)
	}
	return buf.String(), nil
}
