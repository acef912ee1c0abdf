// Package fmcsa provides a client for the FMCSA QCMobile carrier registry
// and the risk grading applied to carrier safety records.
package fmcsa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/resilience"
)

const defaultBaseURL = "https://mobile.fmcsa.dot.gov/qc/services"

// ErrMissingWebKey means no registry credential is configured. Fatal for
// the invocation; callers must not retry.
var ErrMissingWebKey = eris.New("fmcsa: webKey is not configured")

// ErrCarrierNotFound means the registry has no carrier for the DOT number
// (unknown or mistyped identifier). Terminal; callers must not retry.
var ErrCarrierNotFound = eris.New("fmcsa: carrier not found")

// Client defines the carrier registry operations.
type Client interface {
	// GetCarrier fetches the safety record for a DOT number.
	GetCarrier(ctx context.Context, dotNumber string) (*CarrierSnapshot, error)
}

// CarrierSnapshot is a carrier's normalized safety record, fetched fresh on
// every call and never persisted.
type CarrierSnapshot struct {
	DOTNumber      string  `json:"dot_number"`
	LegalName      string  `json:"legal_name"`
	VehicleOOSRate float64 `json:"vehicle_oos_rate"`
	DriverOOSRate  float64 `json:"driver_oos_rate"`
	SafetyRating   string  `json:"safety_rating"`
	CrashFatal     int     `json:"crash_fatal"`
	CrashInjury    int     `json:"crash_injury"`
	CrashTow       int     `json:"crash_tow"`
}

// TotalCrashes returns the sum of fatal, injury, and tow crash counts.
func (s *CarrierSnapshot) TotalCrashes() int {
	return s.CrashFatal + s.CrashInjury + s.CrashTow
}

// Option configures the FMCSA client.
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
	webKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an FMCSA QCMobile client. The webKey may be empty; in
// that case every GetCarrier call fails with ErrMissingWebKey.
func NewClient(webKey string, opts ...Option) Client {
	c := &httpClient{
		webKey:  webKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
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

func (c *httpClient) GetCarrier(ctx context.Context, dotNumber string) (*CarrierSnapshot, error) {
	if c.webKey == "" {
		return nil, ErrMissingWebKey
	}

	reqURL := fmt.Sprintf("%s/carriers/%s?webKey=%s",
		c.baseURL, url.PathEscape(strings.TrimSpace(dotNumber)), url.QueryEscape(c.webKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fmcsa: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fmcsa: get carrier %s", dotNumber)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("fmcsa: get carrier %s: status %d", dotNumber, resp.StatusCode),
				resp.StatusCode)
		}
		return nil, eris.Wrapf(ErrCarrierNotFound, "dot %s: status %d", dotNumber, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fmcsa: read response")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "fmcsa: unmarshal response")
	}

	carrier, err := env.carrier()
	if err != nil {
		return nil, err
	}
	if carrier == nil {
		return nil, eris.Wrapf(ErrCarrierNotFound, "dot %s: empty payload", dotNumber)
	}

	return &CarrierSnapshot{
		DOTNumber:      strings.TrimSpace(dotNumber),
		LegalName:      carrier.LegalName,
		VehicleOOSRate: float64(carrier.VehicleOosRate),
		DriverOOSRate:  float64(carrier.DriverOosRate),
		SafetyRating:   carrier.SafetyRating,
		CrashFatal:     int(carrier.Crashes.Fatal),
		CrashInjury:    int(carrier.Crashes.Injury),
		CrashTow:       int(carrier.Crashes.Tow),
	}, nil
}

// envelope tolerates the registry returning content as either a single
// object or a list of objects for the same logical payload.
type envelope struct {
	Content json.RawMessage `json:"content"`
}

func (e *envelope) carrier() (*carrierPayload, error) {
	trimmed := strings.TrimSpace(string(e.Content))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []contentItem
		if err := json.Unmarshal(e.Content, &items); err != nil {
			return nil, eris.Wrap(err, "fmcsa: unmarshal content list")
		}
		if len(items) == 0 {
			return nil, nil
		}
		return items[0].Carrier, nil
	case '{':
		var item contentItem
		if err := json.Unmarshal(e.Content, &item); err != nil {
			return nil, eris.Wrap(err, "fmcsa: unmarshal content object")
		}
		return item.Carrier, nil
	default:
		return nil, eris.Errorf("fmcsa: unexpected content payload %q", truncate(trimmed, 40))
	}
}

type contentItem struct {
	Carrier *carrierPayload `json:"carrier"`
}

type carrierPayload struct {
	LegalName      string      `json:"legalName"`
	VehicleOosRate flexFloat   `json:"vehicleOosRate"`
	DriverOosRate  flexFloat   `json:"driverOosRate"`
	SafetyRating   string      `json:"safetyRating"`
	Crashes        crashCounts `json:"crashes"`
}

type crashCounts struct {
	Fatal  flexInt `json:"fatal"`
	Injury flexInt `json:"injury"`
	Tow    flexInt `json:"tow"`
}

// flexFloat decodes a JSON number, a numeric string, or null. The registry
// switches between representations across carriers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "fmcsa: parse numeric field %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt decodes a JSON integer, a numeric string, or null.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*i = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.Atoi(s)
	if err != nil {
		return eris.Wrapf(err, "fmcsa: parse integer field %q", s)
	}
	*i = flexInt(v)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
