package agents

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	xhttp "BetPulse/pkg/http"
)

// HTTPServiceBase holds the base URL and retrying client shared by the
// HTTP agent clients.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds a client with the agent's timeout and retry
// budget. The timeout bounds each attempt, not the whole call.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, retries int) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRetries(retries, 50*time.Millisecond)),
	}
}

// PostJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("agent http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}
