// Package gpt provides an OpenAI-compatible chat client. burnchat uses
// it to send rendered handwriting to a vision model.
package gpt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// Defaults for a recognition-style request: deterministic and short.
const (
	DefaultTemperature = 0
	DefaultMaxTokens   = 200
	DefaultTimeout     = 30 * time.Second

	// maxReplyBytes bounds how much of a response body is read.
	maxReplyBytes = 1 << 20
)

// RoleUser is the only role burnchat sends.
const RoleUser = "user"

// ErrNoChoices is returned when the endpoint answers 200 with no reply.
var ErrNoChoices = errors.New("gpt: response has no choices")

// StatusError is returned for a non-200 reply.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gpt: endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("gpt: endpoint returned %d: %s", e.Code, e.Message)
}

// ── Wire types ───────────────────────────────────────────────────

// Message is a single chat-completion message.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// ImageMessage builds a user message carrying a prompt and a PNG image.
func ImageMessage(prompt string, png []byte) Message {
	return Message{
		Role: RoleUser,
		Content: []Content{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: PNGDataURL(png)}},
		},
	}
}

// PNGDataURL inlines png as a base64 data URL.
func PNGDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// Content is one block of a message: text or image_url.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference.
type ImageURL struct {
	URL string `json:"url"`
}

type request struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ── Client ───────────────────────────────────────────────────────

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the model name. Azure deployments leave it empty.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTemperature sets the sampling temperature. Negative values are
// ignored.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithMaxTokens sets the reply token limit. Non-positive values are
// ignored.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its own timeout
// wins over WithHTTPTimeout.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithBearerAuth sends the key as "Authorization: Bearer" (OpenAI style)
// instead of the Azure "api-key" header.
func WithBearerAuth() ClientOption {
	return func(c *Client) { c.bearer = true }
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	bearer      bool
	http        *http.Client
	log         *logger.Logger
}

// NewClient creates a client for endpoint, the full chat/completions URL.
func NewClient(endpoint, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     DefaultTimeout,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Chat sends messages and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	req, err := c.newRequest(ctx, messages)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gpt: post: %w", err)
	}
	defer resp.Body.Close()

	reply, err := decode(resp)
	if err != nil {
		return "", err
	}
	c.log.Debug("gpt: %d-char reply", len(reply))
	return reply, nil
}

func (c *Client) newRequest(ctx context.Context, messages []Message) (*http.Request, error) {
	body, err := json.Marshal(request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        1,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gpt: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("api-key", c.apiKey)
	}
	return req, nil
}

func decode(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("gpt: read reply: %w", err)
	}

	var r response
	jsonErr := json.Unmarshal(raw, &r)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if jsonErr == nil && r.Error != nil {
			msg = r.Error.Message
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return "", fmt.Errorf("gpt: decode reply: %w", jsonErr)
	}
	if len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}
