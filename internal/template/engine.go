// Package template renders build descriptions for an environment.
//
// A build description template is plain text carrying a placeholder token.
// Rendering replaces every occurrence of the token with the literal path of
// the source environment; nothing else in the template is interpreted.
package template

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/dosanma1/envpack/pkg/xos"
)

// DefaultPlaceholder is the token replaced with the environment path.
const DefaultPlaceholder = "{conda_env}"

// defaultTemplate is the bundled build description used when no template
// path is given.
const defaultTemplate = "templates/Dockerfile"

//go:embed templates/Dockerfile
var templatesFS embed.FS

// Result is a rendered build description.
type Result struct {
	Content string

	// Substitutions counts the replaced placeholder occurrences. Zero means
	// the template passed through unchanged.
	Substitutions int
}

// Engine renders build description templates.
type Engine struct {
	placeholder string
}

// NewEngine creates a new template engine. An empty placeholder selects
// DefaultPlaceholder.
func NewEngine(placeholder string) *Engine {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Engine{placeholder: placeholder}
}

// Placeholder returns the token this engine substitutes.
func (e *Engine) Placeholder() string {
	return e.placeholder
}

// Render substitutes envPath for every placeholder occurrence in tmpl.
// A template without the placeholder is returned unchanged.
func (e *Engine) Render(tmpl, envPath string) Result {
	n := strings.Count(tmpl, e.placeholder)
	if n == 0 {
		return Result{Content: tmpl}
	}
	return Result{
		Content:       strings.ReplaceAll(tmpl, e.placeholder, envPath),
		Substitutions: n,
	}
}

// RenderFile reads the template at path and renders it. An empty path
// renders the bundled default template.
func (e *Engine) RenderFile(path, envPath string) (Result, error) {
	content, err := ReadTemplate(path)
	if err != nil {
		return Result{}, err
	}
	return e.Render(string(content), envPath), nil
}

// RenderToFile renders the template at templatePath and writes the result
// to outputPath.
func (e *Engine) RenderToFile(templatePath, envPath, outputPath string) (Result, error) {
	result, err := e.RenderFile(templatePath, envPath)
	if err != nil {
		return Result{}, err
	}

	if err := xos.WriteFile(outputPath, []byte(result.Content), 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write build description: %w", err)
	}

	return result, nil
}

// ReadTemplate returns the template content at path, or the bundled default
// when path is empty.
func ReadTemplate(path string) ([]byte, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return content, nil
}

// DefaultTemplate returns the bundled build description template.
func DefaultTemplate() []byte {
	content, err := templatesFS.ReadFile(defaultTemplate)
	if err != nil {
		// The file is embedded at compile time.
		panic(fmt.Sprintf("embedded template %s missing: %v", defaultTemplate, err))
	}
	return content
}
