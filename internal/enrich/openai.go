package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/HendryAvila/adtree/internal/enrich"

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond throttles calls; 0 disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig targets a local LM Studio server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:1234/v1",
		Timeout: 60 * time.Second,
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meter = mp.Meter(instrumentationName) }
}

// Client is a Gateway backed by a chat completions endpoint.
type Client struct {
	api     *openai.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger

	tracer   trace.Tracer
	meter    metric.Meter
	calls    metric.Int64Counter
	failures metric.Int64Counter
}

// NewClient creates a Client. A nil logger means slog.Default().
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		timeout: cfg.Timeout,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.calls, err = c.meter.Int64Counter("adtree.enrich.calls",
		metric.WithDescription("Enrichment calls issued to the language model backend"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("enrich: create calls counter: %w", err)
	}
	c.failures, err = c.meter.Int64Counter("adtree.enrich.failures",
		metric.WithDescription("Enrichment calls that produced no text"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("enrich: create failures counter: %w", err)
	}
	return c, nil
}

// Rewrite implements Gateway.
func (c *Client) Rewrite(ctx context.Context, instructions, source string, p Profile) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	ctx, span := c.tracer.Start(ctx, "enrich.rewrite", trace.WithAttributes(
		attribute.String("llm.model", p.Model),
		attribute.Int("enrich.source_length", len(source)),
	))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("llm.model", p.Model))
	c.calls.Add(ctx, 1, attrs)

	text, err := c.complete(ctx, instructions, source, p)
	if err == nil && text == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		c.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("enrichment failed, keeping original text", "model", p.Model, "error", err)
		return ""
	}
	span.SetStatus(codes.Ok, "")
	return text
}

func (c *Client) complete(ctx context.Context, instructions, source string, p Profile) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: source},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	c.logger.Debug("enrichment completed", "model", p.Model, "finish_reason", resp.Choices[0].FinishReason)
	return StripReasoning(resp.Choices[0].Message.Content), nil
}

const thinkClose = "</think>"

// StripReasoning drops a reasoning model's "<think>…</think>" preamble
// and trims the remainder.
func StripReasoning(s string) string {
	if i := strings.LastIndex(s, thinkClose); i >= 0 {
		s = s[i+len(thinkClose):]
	}
	return strings.TrimSpace(s)
}
