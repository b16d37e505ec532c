// Package llm wraps the language model used for command parsing and tag suggestions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDisabled is returned when model features are switched off.
	ErrDisabled = errors.New("model features are disabled (set AI_ENABLED=true)")
	// ErrNotConfigured is returned when credentials or the model name are missing.
	ErrNotConfigured = errors.New("model is not configured")
)

// DefaultModelName is used when no model is configured explicitly.
const DefaultModelName = "gemini-2.5-flash"

// Config holds the model endpoint settings.
type Config struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Check reports why the model cannot be called, without touching the network.
func (c Config) Check() error {
	if !c.Enabled {
		return ErrDisabled
	}
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Model == "" {
		missing = append(missing, "LLM_MODEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Request is one model call: system instructions plus the user's text.
type Request struct {
	System []string
	Prompt string
	// JSON asks the model for a JSON response body.
	JSON bool
}

// Model generates a text completion.
// This interface enables mocking of model calls in tests.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ParseError is returned when a model response cannot be decoded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable model response: %v\nraw response: %s", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSONObject strips Markdown fences and surrounding prose, keeping the text
// from the first '{' to the last '}'.
func ExtractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", &ParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}
	return s[start : end+1], nil
}
