// Package modelcache keeps downloaded recognition weights on disk under
// <dir>/tesseract/weights/tessdata_best/<lang>.traineddata.
package modelcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spherical/pdf-inspector/internal/domain"
	"github.com/spherical/pdf-inspector/internal/observability"
)

const (
	toolkit    = "tesseract"
	collection = "tessdata_best"
	extension  = ".traineddata"
)

// Model is one cached weights file.
type Model struct {
	Language string    `json:"language"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Cache manages the weights directory. Downloads are serialized so that at
// most one writer touches the directory at a time.
type Cache struct {
	dir     string
	baseURL string
	client  *http.Client
	retry   *RetryConfig
	logger  *observability.Logger

	mu sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

// WithRetry overrides the download retry policy.
func WithRetry(cfg *RetryConfig) Option {
	return func(c *Cache) { c.retry = cfg }
}

// WithTimeout bounds each download attempt; zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// New creates a cache rooted at dir that downloads from baseURL.
func New(dir, baseURL string, logger *observability.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = observability.Nop()
	}
	c := &Cache{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		retry:   DefaultRetryConfig(),
		logger:  logger.WithOperation("modelcache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TessdataDir is the directory holding the weights files; it is what the
// recognizer takes as its tessdata prefix.
func (c *Cache) TessdataDir() string {
	return filepath.Join(c.dir, toolkit, "weights", collection)
}

// Path is where the weights for lang live.
func (c *Cache) Path(lang string) string {
	return filepath.Join(c.TessdataDir(), lang+extension)
}

// Present reports whether the weights for lang are already on disk.
func (c *Cache) Present(lang string) bool {
	info, err := os.Stat(c.Path(lang))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Ensure returns the tessdata directory holding lang, downloading the
// weights on first use. A missing or unreachable model is reported as
// UnavailableDependency.
func (c *Cache) Ensure(ctx context.Context, lang string) (string, error) {
	if err := validLanguage(lang); err != nil {
		return "", err
	}
	if c.Present(lang) {
		return c.TessdataDir(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Present(lang) {
		return c.TessdataDir(), nil
	}

	if err := c.download(ctx, lang); err != nil {
		return "", domain.UnavailableDependency(domain.BackendOCRTables,
			fmt.Sprintf("recognition weights for %q are not available", lang), err).
			WithHint("Check network access or pre-populate " + c.TessdataDir())
	}
	return c.TessdataDir(), nil
}

func (c *Cache) download(ctx context.Context, lang string) error {
	url := fmt.Sprintf("%s/%s%s", c.baseURL, lang, extension)
	start := time.Now()
	c.logger.Info().Str("language", lang).Str("url", url).Msg("Downloading recognition weights")

	if err := os.MkdirAll(c.TessdataDir(), 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}

	resp, err := c.getWithBackoff(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(c.TessdataDir(), lang+"-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("empty weights file from %s", url)
	}

	if err := os.Rename(tmp.Name(), c.Path(lang)); err != nil {
		return fmt.Errorf("install weights: %w", err)
	}

	c.logger.Info().
		Str("language", lang).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Recognition weights cached")
	return nil
}

// List returns the cached models sorted by language.
func (c *Cache) List() ([]Model, error) {
	entries, err := os.ReadDir(c.TessdataDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read weights dir: %w", err)
	}

	var models []Model
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, Model{
			Language: strings.TrimSuffix(e.Name(), extension),
			Path:     filepath.Join(c.TessdataDir(), e.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Language < models[j].Language })
	return models, nil
}

// Remove deletes the cached weights for lang.
func (c *Cache) Remove(lang string) error {
	if err := validLanguage(lang); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.Path(lang)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove weights: %w", err)
	}
	return nil
}

// validLanguage rejects tags that could escape the cache directory.
func validLanguage(lang string) error {
	if lang == "" {
		return domain.ValidationError("language is required", nil)
	}
	for _, r := range lang {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return domain.ValidationError(fmt.Sprintf("invalid language tag %q", lang), nil)
		}
	}
	return nil
}
