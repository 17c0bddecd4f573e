package feedsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feed"
)

// Fetcher represents the behavior required to retrieve the full current
// list of events from the feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Event, error)
}

// HTTPFetcher retrieves events from the feed service API.
type HTTPFetcher struct {
	client *http.Client
	url    string
}

// NewHTTPFetcher constructs a fetcher for the feed service at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	tr := http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout, Transport: &tr},
		url:    strings.TrimSuffix(baseURL, "/") + "/v1/events",
	}
}

// Fetch issues the request and decodes the newest first list of events.
// Errors wrap ErrTransport, ErrStatus or ErrParse.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]feed.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	var evts []feed.Event
	if err := json.NewDecoder(resp.Body).Decode(&evts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return evts, nil
}
