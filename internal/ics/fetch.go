package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "groupfeed/internal/log"
	"groupfeed/internal/output"
	"groupfeed/internal/store"
)

// Source is one remote calendar, downloaded as <Group>.ics.
type Source struct {
	Group string
	URL   string
}

// FetchResult is the outcome of fetching a single source.
type FetchResult struct {
	Source Source
	// Path is the calendar file in the input directory.
	Path string
	// Updated reports whether Path was rewritten by this fetch.
	Updated bool
}

// Cache stores HTTP validators per URL.
type Cache interface {
	Get(url string) (store.Entry, error)
	Put(e store.Entry) error
}

// Fetcher downloads sources into an input directory using conditional GETs.
// When a download fails the file already on disk is left in place.
type Fetcher struct {
	client *http.Client
	cache  Cache
	dir    string
}

// NewFetcher creates a Fetcher writing into dir. cache may be nil, in which
// case every fetch is unconditional.
func NewFetcher(dir string, cache Cache) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: cache,
		dir:   dir,
	}
}

// FetchAll fetches every source in order. Errors are logged and collected;
// results only contain sources that left a usable file behind.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Group, err))
			appLog.Error("ics fetch failed", err, "group", src.Group, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne downloads a single source, honoring ETag and Last-Modified.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	if src.Group == "" {
		return FetchResult{}, errors.New("source group is empty")
	}

	res := FetchResult{Source: src, Path: filepath.Join(f.dir, src.Group+".ics")}
	_, statErr := os.Stat(res.Path)
	havePrevious := statErr == nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	// Validators are only useful while the file they describe still exists.
	if havePrevious && f.cache != nil {
		if meta, err := f.cache.Get(src.URL); err == nil {
			if meta.ETag != "" {
				req.Header.Set("If-None-Match", meta.ETag)
			}
			if meta.LastModified != "" {
				req.Header.Set("If-Modified-Since", meta.LastModified)
			}
		}
	}

	appLog.Info("ics fetch start", "group", src.Group, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if havePrevious {
			appLog.Error("ics fetch network error, keeping previous file", err, "group", src.Group, "url", redactURL(src.URL))
			return res, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return f.keepPrevious(res, havePrevious, fmt.Errorf("read body: %w", err))
		}
		if _, err := ParseDocument(body); err != nil {
			return f.keepPrevious(res, havePrevious, fmt.Errorf("payload is not a calendar: %w", err))
		}

		if err := output.WriteFileAtomic(res.Path, body, 0o644); err != nil {
			return FetchResult{}, fmt.Errorf("write %s: %w", res.Path, err)
		}
		res.Updated = true

		if f.cache != nil {
			entry := store.Entry{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.cache.Put(entry); err != nil {
				// Log but still report the fresh download.
				appLog.Error("ics cache save failed", err, "group", src.Group, "url", redactURL(src.URL))
			}
		}

		appLog.Info("ics fetch success", "group", src.Group, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
		return res, nil

	case http.StatusNotModified:
		if !havePrevious {
			return FetchResult{}, errors.New("received 304 Not Modified but no previous file available")
		}
		appLog.Info("ics fetch not modified", "group", src.Group, "url", redactURL(src.URL))
		return res, nil

	default:
		return f.keepPrevious(res, havePrevious, errors.New(resp.Status))
	}
}

func (f *Fetcher) keepPrevious(res FetchResult, havePrevious bool, cause error) (FetchResult, error) {
	if !havePrevious {
		return FetchResult{}, cause
	}
	appLog.Error("ics fetch failed, keeping previous file", cause, "group", res.Source.Group, "url", redactURL(res.Source.URL))
	return res, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
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

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
