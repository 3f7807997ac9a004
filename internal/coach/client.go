// Package coach writes the spoken coaching lines with an OpenAI-compatible
// chat model.
package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

var _ domain.TextGenerator = (*Client)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ── Options ──────────────────────────────────────────────────────

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	baseURL     string
	azureAPI    string
	maxRetries  int
}

// WithModel overrides the default model name. For Azure deployments this
// is the deployment name.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *clientConfig) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *clientConfig) { c.maxTokens = n }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithAzure treats the base URL as an Azure OpenAI resource endpoint using
// the given API version.
func WithAzure(apiVersion string) ClientOption {
	return func(c *clientConfig) { c.azureAPI = apiVersion }
}

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) ClientOption {
	return func(c *clientConfig) { c.maxRetries = n }
}

// ── Client ───────────────────────────────────────────────────────

// Client generates coaching lines through the chat-completions API.
type Client struct {
	api         oai.Client
	model       string
	temperature float64
	maxTokens   int
	log         *logger.Logger
}

// NewClient creates a coaching text client.
func NewClient(apiKey string, log *logger.Logger, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("coach: api key must not be empty")
	}

	cfg := &clientConfig{
		model:       DefaultModel,
		temperature: 0.9,
		maxTokens:   60,
		timeout:     15 * time.Second,
		maxRetries:  1,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
		option.WithMaxRetries(cfg.maxRetries),
	}
	switch {
	case cfg.azureAPI != "":
		if cfg.baseURL == "" {
			return nil, errors.New("coach: azure requires a base URL")
		}
		reqOpts = append(reqOpts,
			azure.WithEndpoint(cfg.baseURL, cfg.azureAPI),
			azure.WithAPIKey(apiKey),
		)
	case cfg.baseURL != "":
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey), option.WithBaseURL(cfg.baseURL))
	default:
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}

	log.Debug("coach: model=%s temperature=%.2f max_tokens=%d", cfg.model, cfg.temperature, cfg.maxTokens)
	return &Client{
		api:         oai.NewClient(reqOpts...),
		model:       cfg.model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
		log:         log,
	}, nil
}

// GenerateCoachingText asks the model for one line for the given context.
func (c *Client) GenerateCoachingText(ctx context.Context, cc domain.CoachingContext) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(PromptCoach),
			oai.UserMessage(BuildUserPrompt(cc)),
		},
		Temperature:         param.NewOpt(c.temperature),
		MaxCompletionTokens: param.NewOpt(int64(c.maxTokens)),
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("coach: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("coach: empty response (no choices)")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("coach: empty reply")
	}
	c.log.Debug("coach: %s line in %s (%d tokens): %s",
		cc.Category, time.Since(start).Round(time.Millisecond), resp.Usage.TotalTokens, truncate(reply, 80))
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
