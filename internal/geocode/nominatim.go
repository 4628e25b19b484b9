package geocode

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

	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultTimeout      = 10 * time.Second
	defaultUserAgent    = "clinic-booking-bot"
)

// NominatimClient calls the OpenStreetMap Nominatim reverse endpoint.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	language   string
	logger     *logging.Logger
}

// NominatimOption customizes a NominatimClient.
type NominatimOption func(*NominatimClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *NominatimClient) {
		if c != nil {
			n.httpClient = c
		}
	}
}

// WithLanguage sets the accept-language used for address names.
func WithLanguage(lang string) NominatimOption {
	return func(n *NominatimClient) { n.language = strings.TrimSpace(lang) }
}

// NewNominatimClient constructs a reverse geocoding client. Nominatim's usage
// policy requires an identifying User-Agent.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, logger *logging.Logger, opts ...NominatimOption) *NominatimClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultNominatimURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &NominatimClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse resolves lat/lon to Nominatim's display_name.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if !ValidCoordinates(lat, lon) {
		return "", fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrNotFound, lat, lon)
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if c.language != "" {
		q.Set("accept-language", c.language)
	}
	endpoint := c.baseURL + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("geocode: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("nominatim non-2xx response", "status", resp.StatusCode, "body", msg)
		return "", fmt.Errorf("geocode: nominatim returned %d", resp.StatusCode)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("geocode: decode response: %w", err)
	}
	address := strings.TrimSpace(parsed.DisplayName)
	if parsed.Error != "" || address == "" {
		return "", ErrNotFound
	}
	return address, nil
}
