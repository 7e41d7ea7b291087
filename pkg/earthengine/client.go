// Package earthengine provides a client for the remote raster analysis
// platform that performs region reductions over image assets.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/forest-cli/internal/resilience"
)

// Client performs region reductions on the analysis platform.
type Client interface {
	// ReduceRegion reduces an image over a single geometry.
	ReduceRegion(ctx context.Context, req ReduceRequest) (Values, error)
	// ReduceRegions reduces an image over many geometries in one call.
	ReduceRegions(ctx context.Context, req ReduceRegionsRequest) ([]FeatureValues, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPolicy sets the retry and circuit-breaker policy.
func WithPolicy(p *resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

type httpClient struct {
	token   string
	project string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  *resilience.Policy
}

// NewClient creates a platform client authenticated with a bearer token and
// scoped to a cloud project.
func NewClient(token, project string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		project: project,
		baseURL: "https://earthengine.googleapis.com",
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
		policy: resilience.NewPolicy("earthengine",
			resilience.DefaultBackoff(),
			resilience.NewBreaker(5, 30*time.Second),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ReduceRegion(ctx context.Context, req ReduceRequest) (Values, error) {
	if req.CRS == "" {
		req.CRS = DefaultCRS
	}

	body, err := c.post(ctx, "image:reduceRegion", req)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: reduce region")
	}

	var resp reduceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "earthengine: unmarshal reduce region response")
	}
	return values(resp.Result), nil
}

func (c *httpClient) ReduceRegions(ctx context.Context, req ReduceRegionsRequest) ([]FeatureValues, error) {
	if len(req.Features) == 0 {
		return nil, nil
	}
	if req.CRS == "" {
		req.CRS = DefaultCRS
	}

	body, err := c.post(ctx, "image:reduceRegions", req)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: reduce regions")
	}

	var resp reduceRegionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "earthengine: unmarshal reduce regions response")
	}

	out := make([]FeatureValues, 0, len(resp.Features))
	for _, f := range resp.Features {
		out = append(out, FeatureValues{ID: f.ID, Values: values(f.Values)})
	}
	return out, nil
}

// post sends a JSON request to a project-scoped method and returns the body
// of a 200 response.
func (c *httpClient) post(ctx context.Context, method string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/%s", c.baseURL, url.PathEscape(c.project), method)

	return resilience.Call(ctx, c.policy, method, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}

		if resp.StatusCode != http.StatusOK {
			return nil, resilience.NewStatusError(
				eris.Errorf("status %d: %s", resp.StatusCode, errorMessage(body)),
				resp.StatusCode,
			)
		}
		return body, nil
	})
}

// errorMessage extracts the platform's error message, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(body) > 512 {
		return string(body[:512])
	}
	return string(body)
}
