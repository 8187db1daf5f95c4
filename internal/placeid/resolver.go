// Package placeid resolves business-listing URLs (including shortened links)
// to their stable place identifier.
package placeid

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/browser"
	"github.com/sells-group/redflag-cli/internal/model"
)

// maxBodyBytes caps how much of the listing page is scanned for an embedded id.
const maxBodyBytes = 2 << 20

var (
	pathIDRe  = regexp.MustCompile(`/(place|restaurant|hospital|hair|accommodations|campsite)/(\d+)`)
	queryIDRe = regexp.MustCompile(`[?&]id=(\d+)`)
	bodyIDRe  = regexp.MustCompile(`"id":"(\d+)"`)
)

// Resolver turns an arbitrary listing URL into a PlaceID with a single
// redirect-following GET. It never retries.
type Resolver struct {
	client     *http.Client
	rng        *browser.Rand
	userAgents []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithRand sets the random source used for user-agent rotation.
func WithRand(rng *browser.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

// WithUserAgents overrides the user-agent rotation pool.
func WithUserAgents(uas []string) Option {
	return func(r *Resolver) { r.userAgents = uas }
}

// NewResolver creates a Resolver whose requests time out after timeout.
func NewResolver(timeout time.Duration, opts ...Option) *Resolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := &Resolver{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgents: browser.DesktopUserAgents,
	}
	for _, o := range opts {
		o(r)
	}
	if r.rng == nil {
		r.rng = browser.NewRand(0)
	}
	return r
}

// Resolve follows redirects from rawURL and extracts the place id from the
// final URL path, its query string, or (for listing pages) the page body.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (model.PlaceID, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if rawURL == "" || err != nil || u.Host == "" {
		return "", &model.NotFoundError{URL: rawURL}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", eris.Wrap(err, "placeid: create request")
	}
	if ua := browser.PickUserAgent(r.rng, r.userAgents); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	zap.L().Debug("placeid: resolving url", zap.String("url", rawURL))

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &model.NetworkError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	finalURL := resp.Request.URL.String()

	if id, ok := matchURL(finalURL); ok {
		zap.L().Debug("placeid: resolved from url",
			zap.String("final_url", finalURL),
			zap.String("place_id", id.String()),
		)
		return id, nil
	}

	if strings.Contains(finalURL, "place") {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", &model.NetworkError{URL: rawURL, Err: eris.Wrap(err, "placeid: read body")}
		}
		if id, ok := matchBody(body); ok {
			zap.L().Debug("placeid: resolved from page body",
				zap.String("final_url", finalURL),
				zap.String("place_id", id.String()),
			)
			return id, nil
		}
	}

	return "", &model.NotFoundError{URL: rawURL, FinalURL: finalURL}
}

// matchURL applies the path-segment pattern, then the query pattern.
func matchURL(finalURL string) (model.PlaceID, bool) {
	if m := pathIDRe.FindStringSubmatch(finalURL); m != nil {
		return model.PlaceID(m[2]), true
	}
	if m := queryIDRe.FindStringSubmatch(finalURL); m != nil {
		return model.PlaceID(m[1]), true
	}
	return "", false
}

func matchBody(body []byte) (model.PlaceID, bool) {
	if m := bodyIDRe.FindSubmatch(body); m != nil {
		return model.PlaceID(m[1]), true
	}
	return "", false
}
