// Package hunter provides a client for the Hunter.io email verification API.
package hunter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL      = "https://api.hunter.io/v2"
	defaultPollInterval = 2 * time.Second

	// maxAttempts is the total number of verification requests issued while
	// the service reports 202 (verification in progress).
	maxAttempts = 5
)

// ErrStillProcessing means the service kept returning 202 for every poll
// attempt. Callers treat verification as inconclusive, not as a failure.
var ErrStillProcessing = eris.New("hunter: verification still processing after all attempts")

// Client defines the email verification operations.
type Client interface {
	// VerifyEmail verifies deliverability of an address, polling through the
	// service's "in progress" state.
	VerifyEmail(ctx context.Context, email string) (*Verification, error)
}

// Verification is the raw verifier response. Raw preserves the full body for
// caching; Data carries the consumed fields.
type Verification struct {
	Raw  json.RawMessage  `json:"-"`
	Data VerificationData `json:"data"`
}

// VerificationData holds the verdict and quality signals for an address.
type VerificationData struct {
	Result     string `json:"result"` // valid, invalid, accept_all, unknown
	Score      int    `json:"score"`
	Gibberish  bool   `json:"gibberish"`
	Disposable bool   `json:"disposable"`
}

// ParseVerification decodes a raw verifier response body, as stored in the
// lookup cache, back into a Verification.
func ParseVerification(raw json.RawMessage) (*Verification, error) {
	var v Verification
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, eris.Wrap(err, "hunter: unmarshal verification")
	}
	v.Raw = raw
	return &v, nil
}

// Option configures the Hunter client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPollInterval overrides the wait between "in progress" poll attempts.
func WithPollInterval(d time.Duration) Option {
	return func(c *httpClient) {
		c.pollInterval = d
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	http         *http.Client
}

// NewClient creates a Hunter.io client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*Verification, error) {
	reqURL := fmt.Sprintf("%s/email-verifier?email=%s&api_key=%s",
		c.baseURL, url.QueryEscape(email), url.QueryEscape(c.apiKey))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "hunter: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "hunter: verify %s", email)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "hunter: read response")
		}

		switch resp.StatusCode {
		case http.StatusOK:
			v, parseErr := ParseVerification(body)
			if parseErr != nil {
				return nil, parseErr
			}
			return v, nil

		case http.StatusAccepted:
			// Verification in progress; wait and poll again.
			if attempt == maxAttempts {
				return nil, eris.Wrapf(ErrStillProcessing, "email %s", email)
			}
			select {
			case <-ctx.Done():
				return nil, eris.Wrapf(ctx.Err(), "hunter: verify %s cancelled", email)
			case <-time.After(c.pollInterval):
			}

		default:
			return nil, eris.Errorf("hunter: verify %s: unexpected status %d", email, resp.StatusCode)
		}
	}

	return nil, eris.Wrapf(ErrStillProcessing, "email %s", email)
}
