// Package preview fetches the rendered email HTML from the sending
// platform's shareable preview link.
package preview

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tradu/emailqc/internal/resilience"
)

const (
	fetchTimeout = 15 * time.Second
	// Preview pages behave differently for non-browser agents, so fetches
	// present a desktop browser UA.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

	maxBodyBytes = 4 * 1024 * 1024
)

// Fetcher retrieves preview HTML over HTTP.
type Fetcher struct {
	client *http.Client
	retry  resilience.Config
}

// NewFetcher creates a Fetcher with browser-like defaults.
func NewFetcher() *Fetcher {
	retry := resilience.DefaultConfig()
	retry.OnRetry = resilience.Logger("braze", "fetch preview")
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry: retry,
	}
}

// Fetch retrieves the preview HTML at targetURL, retrying transient
// failures. An empty body is an error; callers fall back to the copy
// document in that case.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	return resilience.Do(ctx, f.retry, func(ctx context.Context) (string, error) {
		return f.fetchOnce(ctx, targetURL)
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "preview: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "preview: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		err := eris.Errorf("preview: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "preview: read body")
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return "", eris.New("preview: response returned empty body")
	}

	return string(body), nil
}

// HostAllowed reports whether the preview URL's host is on the allow-list.
// An empty allow-list permits every host; otherwise the host must equal or
// be a subdomain of an allowed entry.
func HostAllowed(target *url.URL, allowedHosts []string) bool {
	cleaned := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		return true
	}

	hostname := strings.ToLower(target.Hostname())
	for _, host := range cleaned {
		if hostname == host || strings.HasSuffix(hostname, "."+host) {
			return true
		}
	}
	return false
}
