package failover

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single liveness probe
const DefaultProbeTimeout = 3 * time.Second

// healthPath is appended to every node endpoint when probing
const healthPath = "/health"

// Prober checks whether a node endpoint is alive. A nil error means
// the node answered in time; any other outcome is a failure. The
// prober never retries - the next health-check tick is the retry.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}

// HTTPProber probes endpoint + "/health" with a bounded timeout.
// Any 2xx response within the timeout counts as success.
type HTTPProber struct {
	client *http.Client
}

// HTTPProberOption configures an HTTPProber
type HTTPProberOption func(*HTTPProber)

// WithProbeTimeout overrides the default probe timeout
func WithProbeTimeout(d time.Duration) HTTPProberOption {
	return func(p *HTTPProber) {
		p.client.Timeout = d
	}
}

// NewHTTPProber creates a prober with the default 3s timeout
func NewHTTPProber(opts ...HTTPProberOption) *HTTPProber {
	p := &HTTPProber{
		client: &http.Client{Timeout: DefaultProbeTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues a GET against the node's health endpoint
func (p *HTTPProber) Probe(ctx context.Context, endpoint string) error {
	url := strings.TrimSuffix(endpoint, "/") + healthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}
