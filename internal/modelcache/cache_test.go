package modelcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestCache_Layout(t *testing.T) {
	c := New("cache", "https://example.test/", nil)

	assert.Equal(t, filepath.Join("cache", "tesseract", "weights", "tessdata_best"), c.TessdataDir())
	assert.Equal(t, filepath.Join("cache", "tesseract", "weights", "tessdata_best", "eng.traineddata"), c.Path("eng"))
}

func TestCache_EnsureDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/deu.traineddata", r.URL.Path)
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	c := New(t.TempDir(), srv.URL, nil, WithRetry(fastRetry()))
	assert.False(t, c.Present("deu"))

	dir, err := c.Ensure(context.Background(), "deu")
	require.NoError(t, err)
	assert.Equal(t, c.TessdataDir(), dir)
	assert.True(t, c.Present("deu"))

	_, err = c.Ensure(context.Background(), "deu")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(c.Path("deu"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestCache_EnsureRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	c := New(t.TempDir(), srv.URL, nil, WithRetry(fastRetry()))
	_, err := c.Ensure(context.Background(), "eng")

	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCache_EnsureReportsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	var attempts []int
	ctx := WithRetryNotifier(context.Background(), func(attempt, maxRetries int, backoff time.Duration, err error) {
		attempts = append(attempts, attempt)
		assert.Equal(t, 2, maxRetries)
		assert.Positive(t, backoff)
		assert.EqualError(t, err, "HTTP 502")
	})

	c := New(t.TempDir(), srv.URL, nil, WithRetry(fastRetry()))
	_, err := c.Ensure(ctx, "eng")

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCache_EnsureFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantHits int32
	}{
		{"not found is not retried", http.StatusNotFound, 1},
		{"retries are bounded", http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(t.TempDir(), srv.URL, nil, WithRetry(fastRetry()))
			_, err := c.Ensure(context.Background(), "eng")

			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindUnavailableDependency))
			assert.Equal(t, tt.wantHits, hits.Load())
			assert.False(t, c.Present("eng"))
		})
	}
}

func TestCache_RejectsPathTraversal(t *testing.T) {
	c := New(t.TempDir(), "http://unused", nil)
	_, err := c.Ensure(context.Background(), "../etc/passwd")

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrorTypeValidation, de.Type)
}

func TestCache_ListAndRemove(t *testing.T) {
	c := New(t.TempDir(), "http://unused", nil)

	models, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, models)

	require.NoError(t, os.MkdirAll(c.TessdataDir(), 0o755))
	for _, lang := range []string{"fra", "eng"} {
		require.NoError(t, os.WriteFile(c.Path(lang), []byte("w"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(c.TessdataDir(), "notes.txt"), []byte("x"), 0o644))

	models, err = c.List()
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "eng", models[0].Language)
	assert.Equal(t, "fra", models[1].Language)

	require.NoError(t, c.Remove("eng"))
	require.NoError(t, c.Remove("eng"))
	assert.False(t, c.Present("eng"))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(4, cfg))
}
