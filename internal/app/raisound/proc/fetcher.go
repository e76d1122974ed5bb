package proc

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/go-pkgz/lgr"
	"raisound/internal/app/raisound/podcast"
)

// HTTPClient issues requests, *http.Client implements it
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError is returned for a resource which can't be obtained from cache or network
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatus returns non-success status code, zero if the failure wasn't a http status
func (e *FetchError) HTTPStatus() int { return e.StatusCode }

// Fetcher gets resources from Store, or from network on miss storing the body afterwards
type Fetcher struct {
	Store     Store
	Client    HTTPClient
	UserAgent string
	// Refresh skips cache lookup, fetched bytes still overwrite the entry
	Refresh bool
}

// FetchPage gets show page bytes
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*podcast.ShowPage, error) {
	data, origin, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] show page %s from %s, %d bytes", pageURL, origin, len(data))
	return &podcast.ShowPage{URL: pageURL, Key: KeyFor(pageURL), HTML: data}, nil
}

// Fetch gets resource bytes and reports where they came from
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, podcast.Origin, error) {
	key := KeyFor(rawURL)

	if !f.Refresh {
		data, ok, err := f.Store.Get(key)
		if err != nil {
			return nil, "", &FetchError{URL: rawURL, Err: err}
		}
		if ok {
			return data, podcast.FromCache, nil
		}
	}

	data, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}

	if err = f.Store.Put(key, data); err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}
	return data, podcast.FromNetwork, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	log.Printf("[DEBUG] GET %s", rawURL)
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
