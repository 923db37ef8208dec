package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	appLog "taskcal/internal/log"
)

// Source is a single ICS subscription.
type Source struct {
	// ID tags every event imported from this source.
	ID  string
	URL string
}

// FetchResult is the body of one source, fresh or from the disk cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	metaFile = "meta.json"
	bodyFile = "body.ics"
)

// Fetcher downloads ICS feeds with conditional requests, a disk cache and
// exponential backoff on transient failures.
type Fetcher struct {
	client     *http.Client
	cacheDir   string
	newBackOff func() backoff.BackOff
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithBackOff replaces the retry policy. fn is called once per fetch.
func WithBackOff(fn func() backoff.BackOff) FetcherOption {
	return func(f *Fetcher) {
		if fn != nil {
			f.newBackOff = fn
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func NewFetcher(cacheDir string, opts ...FetcherOption) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/ics-cache"
	}
	f := &Fetcher{
		client:     &http.Client{Timeout: 15 * time.Second},
		cacheDir:   cacheDir,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "ics fetch: " + e.Status }

type response struct {
	code         int
	body         []byte
	etag         string
	lastModified string
}

// Fetch downloads src, honoring ETag and Last-Modified. Network failures,
// 5xx and 429 responses are retried; other statuses fail immediately. When
// every attempt fails and a cached body exists, the cached body is returned.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	dir := f.cachePath(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, bodyFile))

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := backoff.RetryNotifyWithData(
		func() (response, error) { return f.get(ctx, src.URL, meta) },
		backoff.WithContext(f.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			appLog.Error("ics fetch attempt failed", err, "id", src.ID, "url", redactURL(src.URL), "retry_in", wait.String())
		},
	)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("ics fetch failed, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, err
	}

	if resp.code == http.StatusNotModified {
		if len(cached) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	if err := saveCache(dir, cacheMeta{
		URL:          src.URL,
		ETag:         resp.etag,
		LastModified: resp.lastModified,
	}, resp.body); err != nil {
		appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
	}
	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(resp.body))
	return FetchResult{Source: src, Body: resp.body}, nil
}

func (f *Fetcher) get(ctx context.Context, url string, meta cacheMeta) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, backoff.Permanent(err)
	}
	if meta.URL == url {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, err
		}
		return response{
			code:         resp.StatusCode,
			body:         body,
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}, nil
	case resp.StatusCode == http.StatusNotModified:
		return response{code: resp.StatusCode}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return response{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	default:
		return response{}, backoff.Permanent(&StatusError{Code: resp.StatusCode, Status: resp.Status})
	}
}

// cachePath keys the cache directory by the first 8 bytes of the URL hash.
func (f *Fetcher) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, fmt.Errorf("ics cache meta: %w", err)
	}
	return meta, nil
}

// saveCache writes the body before the metadata so the metadata never
// points at a missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, bodyFile), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFile), data, 0o600)
}

// redactURL keeps scheme and host only; subscription paths often embed
// private tokens.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + suffix
}
