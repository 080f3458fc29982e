// Package handwriting turns a rendered canvas into candidate characters
// using a vision model behind an OpenAI-compatible endpoint.
package handwriting

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/hammamikhairi/burnchat/internal/config"
	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/gpt"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/telemetry"
)

// MaxCandidates is the most candidates a recognition returns.
const MaxCandidates = 8

// Prompt asks the model for a bare JSON array of candidates.
const Prompt = `Identify the handwritten Chinese character in this image. ` +
	`Return a JSON array of 8 probable string candidates, starting with the most likely one. ` +
	`Example: ["我", "找", "钱", "线", "浅"]. Only return the JSON.`

// Compile-time interface checks.
var (
	_ domain.Recognizer = (*Recognizer)(nil)
	_ domain.Recognizer = Disabled{}
)

// Chatter is the part of gpt.Client the recognizer needs.
type Chatter interface {
	Chat(ctx context.Context, messages []gpt.Message) (string, error)
}

// Option configures the recognizer.
type Option func(*Recognizer)

// WithCache enables result caching.
func WithCache(c *Cache) Option {
	return func(r *Recognizer) { r.cache = c }
}

// WithMaxCandidates caps the number of returned candidates.
func WithMaxCandidates(n int) Option {
	return func(r *Recognizer) {
		if n > 0 {
			r.max = n
		}
	}
}

// Recognizer implements domain.Recognizer. Every failure mode (network,
// HTTP status, malformed reply, cancellation) degrades to an empty result.
type Recognizer struct {
	client Chatter
	cache  *Cache
	log    *logger.Logger
	max    int

	latency metric.Float64Histogram
	calls   metric.Int64Counter
}

// New creates a recognizer over client.
func New(client Chatter, log *logger.Logger, opts ...Option) *Recognizer {
	r := &Recognizer{
		client:  client,
		log:     log,
		max:     MaxCandidates,
		latency: telemetry.Histogram("burnchat.recognition.duration", "Handwriting recognition latency", "ms"),
		calls:   telemetry.Counter("burnchat.recognition.calls", "Handwriting recognition requests by outcome"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize returns up to the configured number of candidates for the
// PNG, most likely first. It never returns an error.
func (r *Recognizer) Recognize(ctx context.Context, png []byte) []string {
	ctx, span := telemetry.Tracer().Start(ctx, "handwriting.Recognize")
	defer span.End()
	span.SetAttributes(attribute.Int("png.bytes", len(png)))

	if len(png) == 0 {
		return nil
	}

	if r.cache != nil {
		if cands, ok := r.cache.Get(png); ok {
			r.record(ctx, "cache", 0)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return r.limit(cands)
		}
	}

	start := time.Now()
	reply, err := r.client.Chat(ctx, []gpt.Message{gpt.ImageMessage(Prompt, png)})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			r.log.Debug("recognition cancelled after %s", elapsed)
			r.record(ctx, "cancelled", elapsed)
			return nil
		}
		outcome := "error"
		var se *gpt.StatusError
		if errors.As(err, &se) {
			outcome = "http_error"
			span.SetAttributes(attribute.Int("http.status_code", se.Code))
		}
		r.log.Warn("recognition failed: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		r.record(ctx, outcome, elapsed)
		return nil
	}

	cands, err := ParseCandidates(reply)
	if err != nil {
		r.log.Warn("recognition reply not a JSON array: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad reply")
		r.record(ctx, "bad_reply", elapsed)
		return nil
	}
	cands = r.limit(cands)

	r.log.Debug("recognized %d candidate(s) in %s", len(cands), elapsed)
	r.record(ctx, "ok", elapsed)
	span.SetAttributes(attribute.Int("candidates", len(cands)))

	if r.cache != nil {
		r.cache.Put(png, cands)
	}
	return cands
}

func (r *Recognizer) limit(cands []string) []string {
	if len(cands) > r.max {
		return cands[:r.max]
	}
	return cands
}

func (r *Recognizer) record(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.calls.Add(ctx, 1, attrs)
	if d > 0 {
		r.latency.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}

// ParseCandidates decodes a model reply into candidates. Markdown code
// fences are stripped, blank entries dropped and duplicates removed.
func ParseCandidates(reply string) ([]string, error) {
	body := stripFences(reply)

	var raw []string
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Disabled is used when no endpoint is configured. It recognizes nothing.
type Disabled struct{}

// Recognize always returns no candidates.
func (Disabled) Recognize(context.Context, []byte) []string { return nil }

// FromConfig builds a recognizer for rc. With no endpoint it returns
// Disabled and domain.ErrRecognizerDisabled so the caller can log it.
// extra is applied after the default cache option.
func FromConfig(rc config.RecognizerConfig, log *logger.Logger, extra ...Option) (domain.Recognizer, error) {
	if strings.TrimSpace(rc.Endpoint) == "" {
		return Disabled{}, domain.ErrRecognizerDisabled
	}

	opts := []gpt.ClientOption{
		gpt.WithHTTPTimeout(rc.Timeout),
		gpt.WithTemperature(rc.Temperature),
		gpt.WithMaxTokens(rc.MaxTokens),
	}
	if rc.Model != "" {
		// A model name means a plain OpenAI-style endpoint rather than an
		// Azure deployment URL.
		opts = append(opts, gpt.WithModel(rc.Model), gpt.WithBearerAuth())
	}
	client := gpt.NewClient(rc.Endpoint, rc.APIKey, log.With("gpt"), opts...)
	recOpts := append([]Option{WithCache(NewCache(rc.Model, DefaultCacheSize, log))}, extra...)
	return New(client, log, recOpts...), nil
}
