package convert

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/extract"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
)

type fakeDoc struct {
	pages int
	mu    sync.Mutex
	count int
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPNG(ctx context.Context, index int, scale float64) ([]byte, error) {
	d.mu.Lock()
	d.count++
	d.mu.Unlock()
	return []byte(fmt.Sprintf("page-%d", index)), nil
}

func (d *fakeDoc) Close() error { return nil }

func (d *fakeDoc) rendered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func openerFor(doc raster.Document) raster.Opener {
	return raster.OpenerFunc(func(string) (raster.Document, error) { return doc, nil })
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))
	return path
}

type chatRequest struct {
	Model             string   `json:"model"`
	MaxTokens         int      `json:"max_tokens"`
	Temperature       *float64 `json:"temperature"`
	SkipSpecialTokens *bool    `json:"skip_special_tokens"`
	Messages          []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

// vlmServer answers every request with "# <page image contents>". Requests
// for pages in fail get a 500.
func vlmServer(t *testing.T, fail map[string]bool, seen func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen != nil {
			seen(req)
		}

		page := ""
		for _, part := range req.Messages[0].Content {
			if part.Type == "image_url" {
				raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(part.ImageURL.URL, "data:image/png;base64,"))
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				page = string(raw)
			}
		}
		if fail[page] {
			http.Error(w, `{"error":{"message":"model crashed"}}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":%q,`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`,
			req.Model, "```markdown\n# "+page+"\n```")
	}))
}

func newConverter(t *testing.T, srv *httptest.Server, doc raster.Document, mutate func(*Options)) *VLMConverter {
	t.Helper()
	opts := OptionsFromConfig(config.Default().Convert, 0)
	opts.BaseURL = srv.URL + "/v1"
	opts.Model = "granite_docling"
	opts.MaxRetries = 0
	opts.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewVLMConverter(openerFor(doc), opts)
	require.NoError(t, err)
	return c
}

func TestNewVLMConverter_RequiresEndpoint(t *testing.T) {
	_, err := NewVLMConverter(openerFor(&fakeDoc{}), Options{Model: "m"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewVLMConverter(openerFor(&fakeDoc{}), Options{BaseURL: "http://x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConvert(t *testing.T) {
	var mu sync.Mutex
	var reqs []chatRequest
	srv := vlmServer(t, nil, func(r chatRequest) {
		mu.Lock()
		reqs = append(reqs, r)
		mu.Unlock()
	})
	defer srv.Close()

	doc := &fakeDoc{pages: 3}
	md, err := newConverter(t, srv, doc, nil).Convert(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, "# page-0\n\n# page-1\n\n# page-2", md)

	require.Len(t, reqs, 3)
	r := reqs[0]
	assert.Equal(t, "granite_docling", r.Model)
	assert.Equal(t, 4096, r.MaxTokens)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 0.0, *r.Temperature)
	require.NotNil(t, r.SkipSpecialTokens)
	assert.False(t, *r.SkipSpecialTokens)
	require.Len(t, r.Messages, 1)
	assert.Equal(t, "user", r.Messages[0].Role)
	require.Len(t, r.Messages[0].Content, 2)
	assert.Equal(t, config.DefaultPrompt, r.Messages[0].Content[1].Text)
}

func TestConvert_ConcurrentKeepsOrder(t *testing.T) {
	var inFlight, peak int32
	srv := vlmServer(t, nil, func(chatRequest) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	})
	defer srv.Close()

	c := newConverter(t, srv, &fakeDoc{pages: 6}, func(o *Options) { o.Concurrency = 3 })
	md, err := c.Convert(context.Background(), writePDF(t))
	require.NoError(t, err)

	var want []string
	for i := 0; i < 6; i++ {
		want = append(want, fmt.Sprintf("# page-%d", i))
	}
	assert.Equal(t, strings.Join(want, "\n\n"), md)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestConvert_PageFailure(t *testing.T) {
	srv := vlmServer(t, map[string]bool{"page-1": true}, nil)
	defer srv.Close()

	doc := &fakeDoc{pages: 4}
	_, err := newConverter(t, srv, doc, nil).Convert(context.Background(), writePDF(t))

	var pe *extract.PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Page)
	assert.Equal(t, StageConvert, pe.Stage)
	assert.Equal(t, 2, doc.rendered(), "sequential conversion stops at the failing page")
}

func TestConvert_PageLimit(t *testing.T) {
	srv := vlmServer(t, nil, nil)
	defer srv.Close()

	doc := &fakeDoc{pages: 10}
	_, err := newConverter(t, srv, doc, func(o *Options) { o.MaxPages = 5 }).Convert(context.Background(), writePDF(t))
	assert.ErrorIs(t, err, extract.ErrPageLimitExceeded)
	assert.Zero(t, doc.rendered())
}

func TestConvert_Canceled(t *testing.T) {
	srv := vlmServer(t, nil, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newConverter(t, srv, &fakeDoc{pages: 2}, nil).Convert(ctx, writePDF(t))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"# Title\n\nBody", "# Title\n\nBody"},
		{"  padded  \n", "padded"},
		{"```markdown\n# Title\n```", "# Title"},
		{"```\nplain\n```", "plain"},
		{"```", "```"},
		{"```inline```", "```inline```"},
		{"text with ``` inside", "text with ``` inside"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanMarkdown(tt.in), "cleanMarkdown(%q)", tt.in)
	}
}
