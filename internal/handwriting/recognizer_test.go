package handwriting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/burnchat/internal/config"
	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/gpt"
	"github.com/hammamikhairi/burnchat/internal/logger"
)

var samplePNG = []byte("\x89PNG\r\n\x1a\nfake-canvas")

// chatServer answers every chat-completions request with reply.
func chatServer(t *testing.T, status int, reply string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		var body struct {
			Messages []gpt.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
			t.Errorf("expected one message with text and image, got %+v", body.Messages)
		} else if img := body.Messages[0].Content[1].ImageURL; img == nil || !strings.HasPrefix(img.URL, "data:image/png;base64,") {
			t.Errorf("expected PNG data URL, got %+v", img)
		}

		w.WriteHeader(status)
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRecognizer(srv *httptest.Server, opts ...Option) *Recognizer {
	log := logger.New(logger.LevelOff, nil)
	client := gpt.NewClient(srv.URL, "test-key", log)
	return New(client, log, opts...)
}

func TestRecognizeReturnsCandidates(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, `["我", "找", "钱"]`, &hits)

	got := newTestRecognizer(srv).Recognize(context.Background(), samplePNG)
	require.Equal(t, []string{"我", "找", "钱"}, got)
	require.EqualValues(t, 1, hits.Load())
}

func TestRecognizeCapsCandidates(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, `["一","二","三","四","五","六","七","八","九","十"]`, &hits)

	got := newTestRecognizer(srv).Recognize(context.Background(), samplePNG)
	require.Len(t, got, MaxCandidates)
	require.Equal(t, "一", got[0])
}

func TestRecognizeFailuresAreEmpty(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"server error", http.StatusInternalServerError, `["我"]`},
		{"not json", http.StatusOK, "I think it is 我"},
		{"json object", http.StatusOK, `{"char":"我"}`},
		{"empty array", http.StatusOK, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := chatServer(t, tt.status, tt.reply, &hits)
			require.Empty(t, newTestRecognizer(srv).Recognize(context.Background(), samplePNG))
		})
	}
}

func TestRecognizeUnreachable(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	client := gpt.NewClient("http://127.0.0.1:1/chat", "k", log, gpt.WithHTTPTimeout(time.Second))
	require.Empty(t, New(client, log).Recognize(context.Background(), samplePNG))
}

func TestRecognizeEmptyImageSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, `["我"]`, &hits)

	require.Empty(t, newTestRecognizer(srv).Recognize(context.Background(), nil))
	require.Zero(t, hits.Load())
}

func TestRecognizeUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := chatServer(t, http.StatusOK, `["我", "找"]`, &hits)
	log := logger.New(logger.LevelOff, nil)
	cache := NewCache("", 4, log)
	r := newTestRecognizer(srv, WithCache(cache))

	first := r.Recognize(context.Background(), samplePNG)
	second := r.Recognize(context.Background(), samplePNG)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, hits.Load())

	h, m := cache.Stats()
	require.EqualValues(t, 1, h)
	require.EqualValues(t, 1, m)
}

// stubChatter lets tests control the reply without HTTP.
type stubChatter struct {
	reply string
	err   error
}

func (s stubChatter) Chat(ctx context.Context, _ []gpt.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply, s.err
}

func TestRecognizeCancelled(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	r := New(stubChatter{reply: `["我"]`}, log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, r.Recognize(ctx, samplePNG))
}

func TestRecognizeErrorNotCached(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	cache := NewCache("", 4, log)
	r := New(stubChatter{err: errors.New("boom")}, log, WithCache(cache))

	require.Empty(t, r.Recognize(context.Background(), samplePNG))
	require.Zero(t, cache.Len())
}

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"bare", `["我","找"]`, []string{"我", "找"}},
		{"fenced", "```json\n[\"我\", \"找\"]\n```", []string{"我", "找"}},
		{"fenced no tag", "```\n[\"我\"]\n```", []string{"我"}},
		{"blanks and dupes", `[" 我 ", "", "我", "找"]`, []string{"我", "找"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.reply)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCandidates("nope")
	require.Error(t, err)
}

func TestCacheEvictsOldest(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	c := NewCache("m", 2, log)

	c.Put([]byte("a"), []string{"一"})
	c.Put([]byte("b"), []string{"二"})
	c.Put([]byte("c"), []string{"三"})
	c.Put([]byte("d"), nil)

	require.Equal(t, 2, c.Len())
	_, ok := c.Get([]byte("a"))
	require.False(t, ok)
	got, ok := c.Get([]byte("c"))
	require.True(t, ok)
	require.Equal(t, []string{"三"}, got)

	// Different model, different key.
	other := NewCache("n", 2, log)
	other.Put([]byte("c"), []string{"x"})
	got, _ = c.Get([]byte("c"))
	require.Equal(t, []string{"三"}, got)

	c.Clear()
	require.Zero(t, c.Len())
}

func TestFromConfig(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)

	rec, err := FromConfig(config.RecognizerConfig{}, log)
	require.ErrorIs(t, err, domain.ErrRecognizerDisabled)
	require.Empty(t, rec.Recognize(context.Background(), samplePNG))

	rec, err = FromConfig(config.RecognizerConfig{
		Endpoint: "http://localhost/v1/chat/completions",
		APIKey:   "k",
		Model:    "gpt-4o-mini",
		Timeout:  time.Second,
	}, log)
	require.NoError(t, err)
	require.IsType(t, &Recognizer{}, rec)
}

func TestFromConfigForwardsRequestSettings(t *testing.T) {
	type seen struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Auth        string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s seen
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode request: %v", err)
		}
		s.Auth = r.Header.Get("Authorization")
		got <- s
		fmt.Fprint(w, `{"choices":[{"message":{"content":"[\"我\",\"找\",\"钱\"]"}}]}`)
	}))
	t.Cleanup(srv.Close)

	rec, err := FromConfig(config.RecognizerConfig{
		Endpoint:    srv.URL,
		APIKey:      "k",
		Model:       "vision-model",
		Timeout:     time.Second,
		Temperature: 0.2,
		MaxTokens:   64,
	}, logger.New(logger.LevelOff, nil), WithMaxCandidates(2))
	require.NoError(t, err)

	require.Equal(t, []string{"我", "找"}, rec.Recognize(context.Background(), samplePNG))
	s := <-got
	require.Equal(t, "vision-model", s.Model)
	require.Equal(t, 0.2, s.Temperature)
	require.Equal(t, 64, s.MaxTokens)
	require.Equal(t, "Bearer k", s.Auth)
}
