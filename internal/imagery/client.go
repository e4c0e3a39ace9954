// Package imagery talks to the remote imagery service: authentication,
// region resolution, and cloud-filtered composite retrieval. Filtering,
// masking and the composite reduction run server-side; this package only
// describes them in the QuerySpec and decodes what comes back.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/urbanveg/vcover/internal/metrics"
	"github.com/urbanveg/vcover/internal/raster"
)

const defaultTimeout = 60 * time.Second

// maxAttempts bounds retries of transient failures per call: one initial
// attempt plus two retries.
const maxAttempts = 3

var (
	// ErrAuth reports rejected credentials. Fatal to the whole run.
	ErrAuth = errors.New("authentication failed")
	// ErrInvalidRegion reports an asset that cannot be resolved to a
	// geometry. Fatal to the whole run.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrMalformed reports a response the service returned successfully
	// but that cannot be decoded into a composite. Not retried.
	ErrMalformed = errors.New("malformed response")
)

// Client is an HTTP client for the imagery service. A Client is safe for
// concurrent use once authenticated; window tasks share it but never share
// request state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string

	// Overridable in tests to avoid real backoff delays.
	newBackOff func() backoff.BackOff
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

type tokenRequest struct {
	Email string `json:"email"`
	Key   string `json:"key"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges service-account credentials for a session token.
// The key file holds the account's private key material; its contents are
// sent as-is.
func (c *Client) Authenticate(ctx context.Context, email, keyFile string) error {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("%w: read key file: %v", ErrAuth, err)
	}

	body, err := json.Marshal(tokenRequest{Email: email, Key: string(key)})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	resp, err := c.post(ctx, "/v1/token", body, "token")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp, &tok); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrAuth, err)
	}
	if tok.Token == "" {
		return fmt.Errorf("%w: empty token", ErrAuth)
	}
	c.token = tok.Token
	return nil
}

// ResolveRegion resolves an asset identifier to its geometry. The geometry
// is opaque to this program; it is carried into QuerySpecs unchanged.
func (c *Client) ResolveRegion(ctx context.Context, assetID string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"asset": assetID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}

	resp, err := c.post(ctx, "/v1/geometry", body, "geometry")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRegion, assetID, err)
	}

	var out struct {
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrInvalidRegion, assetID, err)
	}
	if len(out.Geometry) == 0 {
		return nil, fmt.Errorf("%w: %s: no geometry", ErrInvalidRegion, assetID)
	}
	return out.Geometry, nil
}

// Composite is one window's retrieval result: the ordered candidate scene
// ids (service return order), their whole-scene cloud cover, and the
// reduced reflectance grids. An empty candidate set yields nil grids and is
// not an error.
type Composite struct {
	ImageIDs        []string
	SceneCloudCover []float64
	Red             *raster.Grid
	NIR             *raster.Grid
}

// QueryCollection sends the spec and decodes the composite. Transient
// failures (429, 5xx, network) are retried with exponential backoff up to
// maxAttempts total attempts; other HTTP failures are permanent. A
// successfully returned but undecodable payload is ErrMalformed.
func (c *Client) QueryCollection(ctx context.Context, spec QuerySpec) (*Composite, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	resp, err := c.post(ctx, "/v1/composite", body, "composite")
	if err != nil {
		return nil, err
	}
	return decodeComposite(resp)
}

// post issues one POST with retry/backoff and returns the response body.
func (c *Client) post(ctx context.Context, path string, body []byte, endpoint string) ([]byte, error) {
	var out []byte
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			metrics.ImageryRetriesTotal.Inc()
		}
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.ImageryCallsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		defer resp.Body.Close()
		metrics.ImageryCallLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.ImageryCallsTotal.WithLabelValues(endpoint, "transient").Inc()
			return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			metrics.ImageryCallsTotal.WithLabelValues(endpoint, "rejected").Inc()
			return backoff.Permanent(fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		out, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.ImageryCallsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return fmt.Errorf("%s: read body: %w", endpoint, err)
		}
		metrics.ImageryCallsTotal.WithLabelValues(endpoint, "ok").Inc()
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return out, nil
}
