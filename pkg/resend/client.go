// Package resend provides a minimal client for the Resend email API:
// transactional sends with attachments and audience contact creation.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.resend.com"

// Client defines the Resend operations used by the fulfillment pipeline.
type Client interface {
	// SendEmail sends a transactional email and returns its opaque id.
	SendEmail(ctx context.Context, req SendEmailRequest) (string, error)
	// CreateContact adds a contact to an audience and returns its opaque id.
	CreateContact(ctx context.Context, audienceID string, req CreateContactRequest) (string, error)
}

// Attachment is a file attached to an outgoing email. Content is the raw
// bytes; the API client handles encoding.
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// SendEmailRequest is the request body for POST /emails.
type SendEmailRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// CreateContactRequest is the request body for POST /audiences/{id}/contacts.
type CreateContactRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Unsubscribed bool   `json:"unsubscribed"`
}

type idResponse struct {
	ID string `json:"id"`
}

// Option configures the Resend client.
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Resend API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) SendEmail(ctx context.Context, req SendEmailRequest) (string, error) {
	id, err := c.post(ctx, "/emails", req)
	if err != nil {
		return "", eris.Wrap(err, "resend: send email")
	}
	return id, nil
}

func (c *httpClient) CreateContact(ctx context.Context, audienceID string, req CreateContactRequest) (string, error) {
	id, err := c.post(ctx, fmt.Sprintf("/audiences/%s/contacts", audienceID), req)
	if err != nil {
		return "", eris.Wrap(err, "resend: create contact")
	}
	return id, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("POST %s: unexpected status %d: %s", path, resp.StatusCode, truncate(respBody, 200))
	}

	var idResp idResponse
	if err := json.Unmarshal(respBody, &idResp); err != nil {
		return "", eris.Wrap(err, "unmarshal response")
	}
	return idResp.ID, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
