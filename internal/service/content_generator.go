package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
)

var ErrGeneratorUnavailable = errors.New("content generator not configured")

const geminiAPIVersion = "v1beta"

// ContentGenerator produces text for a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeminiGenerator calls Models.GenerateContent through the genai SDK. The
// SDK client is built on first use.
type GeminiGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGeminiGenerator(cfg *config.Config) *GeminiGenerator {
	return &GeminiGenerator{
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.GeminiModel,
		baseURL: cfg.GeminiBaseURL,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *GeminiGenerator) sdk(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     g.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: g.httpClient,
		}
		if g.baseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL, APIVersion: geminiAPIVersion}
		}
		g.client, g.err = genai.NewClient(ctx, cc)
		if g.err != nil {
			g.err = fmt.Errorf("create gemini client: %w", g.err)
		}
	})
	return g.client, g.err
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if g.apiKey == "" {
		return "", ErrGeneratorUnavailable
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned no content")
	}
	return resp.Text(), nil
}
