package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultModel is the hosted model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig selects the hosted model and credentials.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests and proxies
}

// Gemini is a Service backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a client. An empty API key yields ErrUnavailable so
// callers can fall back to offline generation.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// Model reports the configured model name.
func (g *Gemini) Model() string { return g.model }

// Ping looks the configured model up once. Any failure means the key or the
// endpoint cannot serve this run, so it is reported as ErrUnavailable.
func (g *Gemini) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("%w: gemini model %s: %w", ErrUnavailable, g.model, err)
	}
	return nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if rejected(err) {
			return "", fmt.Errorf("%w: gemini generate: %w", ErrUnavailable, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// rejected reports credential errors, which no retry can fix.
func rejected(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
}
