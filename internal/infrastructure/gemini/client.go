package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 256
	DefaultTimeout         = 30 * time.Second
)

var ErrEmptyResponse = errors.New("empty response from model")

type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
}

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements ingestion.Model on top of the Gemini API.
type Client struct {
	models  generator
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration
	log     zerolog.Logger
}

func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(gc.Models, cfg, log), nil
}

func newClient(models generator, cfg Config, log zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		models: models,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			// Deterministic output; extraction must not vary between retries.
			Temperature:     genai.Ptr[float32](0),
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
			// Thinking tokens are billed against MaxOutputTokens on 2.5 models
			// and would leave no room for the JSON answer.
			ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
		},
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}
}

// Generate sends a single-turn prompt and returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	c.log.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("model responded")
	if text == "" {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
			return "", fmt.Errorf("%w: output budget of %d tokens exhausted", ErrEmptyResponse, c.config.MaxOutputTokens)
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}
