package retriever

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"airsupport/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faqDoc = `# Swiss Airlines FAQ

## Invoice Questions
Can I get an invoice for my booking? Invoices are sent by email after payment.
## Booking and Cancellation
How can I cancel my flight? Cancellation is free within 24 hours. Refund takes seven days.
## Baggage
How much baggage may I carry? One bag of 23 kg is included.
## Upgrades
Can I upgrade to business class? Upgrade offers appear in the app.`

var vocab = []string{"invoice", "cancel", "refund", "baggage", "upgrade", "faq"}

// wordEmbedder maps text onto keyword counts so similarity is predictable.
type wordEmbedder struct {
	calls int32
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(vocab))
		for j, w := range vocab {
			v[j] = float32(strings.Count(lower, w))
		}
		out[i] = v
	}
	return out, nil
}

func faqServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(faqDoc))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func retrieverConfig(dir, url string) config.RetrieverConfig {
	return config.RetrieverConfig{
		Provider: "openai",
		Model:    "word-count",
		FAQURL:   url,
		IndexDir: dir,
		TopK:     2,
	}
}

func TestSplitFAQ(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"no sections", "just text", []string{"just text"}},
		{"sections", "intro\n## A\nx\n## B\ny", []string{"intro", "\n## A\nx", "\n## B\ny"}},
		{"leading section", "\n## A\nx", []string{"\n## A\nx"}},
		{"subsections split too", "\n## A\n### A1\nx", []string{"\n## A", "\n### A1\nx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitFAQ(tt.in))
		})
	}
}

func TestNew_BuildsAndPersists(t *testing.T) {
	srv, hits := faqServer(t, http.StatusOK)
	dir := t.TempDir()
	ctx := context.Background()

	emb := &wordEmbedder{}
	r, err := New(ctx, retrieverConfig(dir, srv.URL), emb, nil, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	again, err := New(ctx, retrieverConfig(dir, srv.URL), &wordEmbedder{}, nil, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, 5, again.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "persisted index must not refetch")

	t.Run("model change rebuilds", func(t *testing.T) {
		cfg := retrieverConfig(dir, srv.URL)
		cfg.Model = "other-model"
		_, err := New(ctx, cfg, &wordEmbedder{}, nil, WithHTTPClient(srv.Client()))
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})
}

func TestRetriever_Query(t *testing.T) {
	srv, _ := faqServer(t, http.StatusOK)
	r, err := New(context.Background(), retrieverConfig(t.TempDir(), srv.URL), &wordEmbedder{}, nil,
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	docs, err := r.Query(context.Background(), "how do I cancel and get a refund", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "## Booking and Cancellation")

	docs, err = r.Query(context.Background(), "baggage", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 5)
	assert.Contains(t, docs[0], "## Baggage")

	docs, err = r.Query(context.Background(), "baggage", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetriever_Lookup(t *testing.T) {
	srv, _ := faqServer(t, http.StatusOK)
	r, err := New(context.Background(), retrieverConfig(t.TempDir(), srv.URL), &wordEmbedder{}, nil,
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := r.Lookup(context.Background(), "upgrade")
	require.NoError(t, err)

	top, err := r.Query(context.Background(), "upgrade", 2)
	require.NoError(t, err)
	assert.Equal(t, top[0]+"\n\n"+top[1], out)
	assert.True(t, strings.HasPrefix(out, "\n## Upgrades"))
}

func TestNew_FetchFailure(t *testing.T) {
	srv, _ := faqServer(t, http.StatusInternalServerError)

	_, err := New(context.Background(), retrieverConfig(t.TempDir(), srv.URL), &wordEmbedder{}, nil,
		WithHTTPClient(srv.Client()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFAQFetch)
}

func TestNew_QuotaExceeded(t *testing.T) {
	srv, _ := faqServer(t, http.StatusOK)
	dir := t.TempDir()

	_, err := New(context.Background(), retrieverConfig(dir, srv.URL), &wordEmbedder{err: ErrQuotaExceeded}, nil,
		WithHTTPClient(srv.Client()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// nothing was persisted, so a later start rebuilds
	_, err = New(context.Background(), retrieverConfig(dir, srv.URL), &wordEmbedder{}, nil,
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 1.0, cosine(a, norm(a), a, norm(a)), 1e-9)
	assert.InDelta(t, 0.0, cosine(a, norm(a), b, norm(b)), 1e-9)
	assert.Equal(t, 0.0, cosine(a, norm(a), []float32{0, 0}, 0))
}
