package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	"github.com/sidequest/backend/pkg/config"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Client names quests with the OpenAI Responses API. It implements
// providers.QuestGenerator.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *clientMetrics
}

var _ providers.QuestGenerator = (*Client)(nil)

// NewClient creates a client against the public API
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	return NewClientWithOptions(cfg, defaultBaseURL, &http.Client{Timeout: 20 * time.Second})
}

// NewClientWithOptions creates a client against a custom endpoint. A negative
// RateLimitRPM disables client-side rate limiting.
func NewClientWithOptions(cfg *config.OpenAIConfig, baseURL string, httpClient *http.Client) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    newLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
		metrics:    newClientMetrics(),
	}, nil
}

func newLimiter(rpm, burst int) *rate.Limiter {
	if rpm < 0 {
		return nil
	}
	if rpm == 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60), burst)
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Temperature     float64        `json:"temperature"`
	MaxOutputTokens int            `json:"max_output_tokens"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

// GenerateQuest returns a short quest name for the establishment
func (c *Client) GenerateQuest(ctx context.Context, establishment *entities.Establishment) (name string, err error) {
	if establishment == nil {
		return "", apperrors.NewValidationError("establishment is required")
	}

	ctx, span := observability.StartSpan(ctx, "openai.GenerateQuest")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("ai.model", c.model),
		attribute.String("establishment.id", establishment.ID),
	)

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			observability.RecordError(span, err)
			return "", apperrors.NewExternalError("openai rate limiter wait aborted", err)
		}
		c.metrics.recordWait(ctx, c.model, time.Since(waitStart))
	}

	statusCode := 0
	start := time.Now()
	defer func() {
		c.metrics.recordRequest(ctx, c.model, statusCode, time.Since(start), err)
		if err != nil {
			observability.RecordError(span, err)
		}
	}()

	body, err := json.Marshal(responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: questSystemPrompt},
			{Role: "user", Content: buildQuestUserPrompt(establishment)},
		},
		Temperature:     0.8,
		MaxOutputTokens: 120,
	})
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode openai request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build openai request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("openai request failed", err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperrors.NewUnauthorizedError(fmt.Sprintf("openai rejected credentials with status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", apperrors.NewExternalError("openai request failed", fmt.Errorf("status %d", resp.StatusCode))
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", apperrors.NewExternalError("failed to decode openai response", err)
	}

	text := firstOutputText(envelope)
	if text == "" {
		return "", apperrors.NewExternalError("openai response missing output text", nil)
	}

	name, err = parseQuestPayload([]byte(stripCodeFence(text)))
	if err != nil {
		return "", apperrors.NewExternalError("failed to parse openai response", err)
	}
	return name, nil
}

func firstOutputText(envelope responseEnvelope) string {
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				return content.Text
			}
		}
	}
	return ""
}

// stripCodeFence removes a ``` or ```json wrapper some models add around JSON
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimPrefix(cleaned, "json")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// clientMetrics is nil when the meter cannot create instruments
type clientMetrics struct {
	requests      metric.Int64Counter
	errors        metric.Int64Counter
	duration      metric.Float64Histogram
	rateLimitWait metric.Float64Histogram
}

func newClientMetrics() *clientMetrics {
	meter := otel.Meter("github.com/sidequest/backend/openai")

	requests, err := meter.Int64Counter("questgen.openai.requests",
		metric.WithDescription("Number of OpenAI quest generation requests"))
	if err != nil {
		return nil
	}
	errs, err := meter.Int64Counter("questgen.openai.errors",
		metric.WithDescription("Number of failed OpenAI quest generation requests"))
	if err != nil {
		return nil
	}
	duration, err := meter.Float64Histogram("questgen.openai.duration",
		metric.WithDescription("OpenAI request duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil
	}
	wait, err := meter.Float64Histogram("questgen.openai.rate_limit_wait",
		metric.WithDescription("Time spent waiting for the client-side rate limiter in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil
	}

	return &clientMetrics{requests: requests, errors: errs, duration: duration, rateLimitWait: wait}
}

func (m *clientMetrics) recordRequest(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("ai.model", model)}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}
	opt := metric.WithAttributes(attrs...)

	m.requests.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(duration.Milliseconds()), opt)
	if err != nil {
		m.errors.Add(ctx, 1, opt)
	}
}

func (m *clientMetrics) recordWait(ctx context.Context, model string, wait time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attribute.String("ai.model", model)))
}
