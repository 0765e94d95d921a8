// Package oracle is the shared transport for every LLM-backed capability
// port (planner, context selector, validator). It knows nothing about
// prompts or domain semantics — it only proxies
// (system, user, schema) -> decoded JSON object, the way
// internal/clients/openai.Client.GenerateJSON did on the teacher's stack.
// Each capability port builds its own prompt and schema and calls this one
// client, since they share transport/auth/retry concerns.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// Client speaks the OpenAI-compatible chat-completions protocol with
// response_format json_object, per SPEC_FULL.md §6 oracle transport.
type Client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

// ErrNotConfigured is returned by New when no API key is present; callers
// treat this as "oracle unavailable" and degrade to a deterministic fallback.
var ErrNotConfigured = errors.New("oracle: no API key configured")

// New builds a Client from environment configuration. It never blocks on
// network I/O; the first call that fails to reach the endpoint is what
// degrades the caller to its fallback path.
func New(log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("ORACLE_API_KEY"))
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	baseURL := strings.TrimSpace(os.Getenv("ORACLE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("ORACLE_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 20
	if v := strings.TrimSpace(os.Getenv("ORACLE_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 2
	if v := strings.TrimSpace(os.Getenv("ORACLE_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &Client{
		log:        log.With("service", "oracle.Client"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		maxRetries: maxRetries,
	}, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string { return fmt.Sprintf("oracle http %d: %s", e.StatusCode, e.Body) }

func (e *httpError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GenerateJSON sends a system/user prompt pair and decodes the model's
// json_object reply into a generic map. schemaName/schema are folded into
// the system prompt as an explicit contract since chat-completions json_object
// mode (unlike the structured-output "responses" API) has no schema field of
// its own; the caller still gets one decode step either way.
func (c *Client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" || schema == nil {
		return nil, errors.New("oracle: schemaName and schema are required")
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("oracle: encode schema: %w", err)
	}
	fullSystem := system + "\n\nRespond ONLY with a JSON object named \"" + schemaName +
		"\" matching this schema:\n" + string(schemaJSON)

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fullSystem},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	req.ResponseFormat.Type = "json_object"

	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("oracle: empty choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("oracle: empty message content")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("oracle: decode model JSON: %w; text=%s", err, content)
	}
	return obj, nil
}

func (c *Client) do(ctx context.Context, path string, body, out any) error {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			return json.Unmarshal(raw, out)
		}
		lastErr = err

		var he *httpError
		if !errors.As(err, &he) || !he.retryable() || attempt == c.maxRetries {
			return err
		}
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))
		c.log.Warn("oracle request retrying", "attempt", attempt+1, "sleep", sleep.String(), "error", err.Error())
		time.Sleep(sleep)
		backoff *= 2
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
