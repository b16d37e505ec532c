package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Gemini is the Model implementation backed by the Gemini API.
type Gemini struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini returns a Gemini model. No network call is made until Generate.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg}
}

// Generate implements Model.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.cfg.Check(); err != nil {
		return "", err
	}

	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	temperature := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if len(req.System) > 0 {
		parts := make([]*genai.Part, 0, len(req.System))
		for _, s := range req.System {
			parts = append(parts, genai.NewPartFromText(s))
		}
		config.SystemInstruction = &genai.Content{Parts: parts}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("Generate: create genai client: %w", err)
	}
	g.client = client
	return client, nil
}

var _ Model = (*Gemini)(nil)
