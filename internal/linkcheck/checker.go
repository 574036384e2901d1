// Package linkcheck probes outbound email links: scheme classification,
// manual redirect resolution with a hard hop bound, dev/staging host
// detection, and approved-domain matching.
package linkcheck

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tradu/emailqc/internal/model"
)

const (
	maxRedirects   = 5
	defaultTimeout = 10 * time.Second
	// defaultConcurrency caps simultaneous probes within one run.
	defaultConcurrency = 6
)

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// devHostPatterns flag non-production-looking hostnames. Coarse substring
// match, case-insensitive.
var devHostPatterns = []string{"wwwd", "dev", "staging"}

// Options configures a Checker.
type Options struct {
	// ApprovedDomains restricts resolved hostnames; empty approves all.
	ApprovedDomains []string
	// Concurrency bounds simultaneous probes in CheckAll.
	Concurrency int
	// Timeout applies per network request, not per probe.
	Timeout time.Duration
	// Limiter paces outbound requests across probes when set.
	Limiter *rate.Limiter
}

// Checker verifies links. Safe for concurrent use.
type Checker struct {
	client          *http.Client
	approvedDomains []string
	concurrency     int
	limiter         *rate.Limiter
}

// New creates a Checker. The HTTP client never follows redirects on its own;
// the probe loop resolves each hop so intermediate hosts can be classified.
func New(opts Options) *Checker {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	approved := make([]string, 0, len(opts.ApprovedDomains))
	for _, d := range opts.ApprovedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			approved = append(approved, d)
		}
	}

	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		approvedDomains: approved,
		concurrency:     concurrency,
		limiter:         opts.Limiter,
	}
}

func containsDevPattern(hostname string) bool {
	lower := strings.ToLower(hostname)
	for _, pattern := range devHostPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func (c *Checker) hostnameApproved(hostname string) bool {
	if len(c.approvedDomains) == 0 {
		return true
	}
	lower := strings.ToLower(hostname)
	for _, domain := range c.approvedDomains {
		if lower == domain || strings.HasSuffix(lower, "."+domain) {
			return true
		}
	}
	return false
}

func isNonHTTPLink(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "sms:")
}

// request issues a single HEAD or GET without following redirects. A nil
// response with nil error means HEAD failed and the caller should retry
// with GET.
func (c *Checker) request(ctx context.Context, method, target string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if method == http.MethodHead {
			return nil, nil
		}
		return nil, err
	}

	// Drain and close so the connection can be reused; bodies are irrelevant
	// to classification.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32*1024))
	_ = resp.Body.Close()

	return resp, nil
}

func (c *Checker) followRedirects(ctx context.Context, initialURL string) model.LinkProbeResult {
	currentURL := initialURL
	redirected := false
	lastStatus := 0

	for depth := 0; depth <= maxRedirects; depth++ {
		resp, err := c.request(ctx, http.MethodHead, currentURL)
		if resp == nil && err == nil {
			resp, err = c.request(ctx, http.MethodGet, currentURL)
		} else if resp != nil && resp.StatusCode == http.StatusMethodNotAllowed {
			resp, err = c.request(ctx, http.MethodGet, currentURL)
		}
		if err != nil || resp == nil {
			return model.LinkProbeResult{
				URL:        initialURL,
				OK:         false,
				Redirected: redirected,
				FinalURL:   currentURL,
				Notes:      model.NoteNoResponse,
			}
		}

		lastStatus = resp.StatusCode

		if redirectStatuses[resp.StatusCode] {
			location := resp.Header.Get("Location")
			if location == "" {
				return model.LinkProbeResult{
					URL:        initialURL,
					StatusCode: resp.StatusCode,
					Redirected: redirected,
					FinalURL:   currentURL,
					OK:         false,
					Notes:      model.NoteRedirectMissingLocation,
				}
			}

			base, err := url.Parse(currentURL)
			if err != nil {
				return model.LinkProbeResult{
					URL:        initialURL,
					StatusCode: resp.StatusCode,
					Redirected: redirected,
					FinalURL:   currentURL,
					OK:         false,
					Notes:      model.NoteInvalidURL,
				}
			}
			next, err := base.Parse(location)
			if err != nil {
				return model.LinkProbeResult{
					URL:        initialURL,
					StatusCode: resp.StatusCode,
					Redirected: redirected,
					FinalURL:   currentURL,
					OK:         false,
					Notes:      model.NoteRedirectMissingLocation,
				}
			}

			currentURL = next.String()
			redirected = true
			continue
		}

		finalHostname := ""
		if parsed, err := url.Parse(currentURL); err == nil {
			finalHostname = parsed.Hostname()
		}

		// A redirect may land on a dev host even when the original did not.
		if containsDevPattern(finalHostname) {
			return model.LinkProbeResult{
				URL:        initialURL,
				StatusCode: resp.StatusCode,
				Redirected: redirected,
				FinalURL:   currentURL,
				OK:         false,
				Notes:      model.NoteDevDomainDetected,
			}
		}

		approved := c.hostnameApproved(finalHostname)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result := model.LinkProbeResult{
				URL:        initialURL,
				StatusCode: resp.StatusCode,
				Redirected: redirected,
				FinalURL:   currentURL,
				OK:         approved,
			}
			if !approved {
				result.Notes = model.NoteUnapprovedDomain
			}
			return result
		}

		return model.LinkProbeResult{
			URL:        initialURL,
			StatusCode: resp.StatusCode,
			Redirected: redirected,
			FinalURL:   currentURL,
			OK:         false,
			Notes:      model.NoteHTTPError,
		}
	}

	return model.LinkProbeResult{
		URL:        initialURL,
		StatusCode: lastStatus,
		Redirected: true,
		FinalURL:   currentURL,
		OK:         false,
		Notes:      model.NoteTooManyRedirects,
	}
}

// Check probes a single URL and classifies the outcome. It reports
// classification, not ground truth reachability.
func (c *Checker) Check(ctx context.Context, rawURL string) model.LinkProbeResult {
	if isNonHTTPLink(rawURL) {
		return model.LinkProbeResult{URL: rawURL, OK: true, Notes: model.NoteNonHTTPLink}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.LinkProbeResult{URL: rawURL, OK: false, Notes: model.NoteInvalidURL}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return model.LinkProbeResult{URL: rawURL, OK: false, Notes: model.NoteUnsupportedProtocol}
	}

	if containsDevPattern(parsed.Hostname()) {
		return model.LinkProbeResult{
			URL:      rawURL,
			OK:       false,
			FinalURL: parsed.String(),
			Notes:    model.NoteDevDomainDetected,
		}
	}

	return c.followRedirects(ctx, parsed.String())
}

// CheckAll probes every URL under the configured concurrency cap. Results
// are returned in input order; individual probe failures never fail the
// batch.
func (c *Checker) CheckAll(ctx context.Context, urls []string) []model.LinkProbeResult {
	results := make([]model.LinkProbeResult, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.Check(gCtx, u)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Warn("linkcheck: batch wait", zap.Error(err))
	}

	return results
}
