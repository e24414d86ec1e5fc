package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	latestPath     = "/latest"
	accessKeyParam = "access_key"
	dayLayout      = "2006-01-02"
)

// ClientOptions parameterise the HTTP rate client.
type ClientOptions struct {
	BaseURL   string
	AccessKey string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches rate tables from an exchangeratesapi.io compatible endpoint.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a rate client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.exchangeratesapi.io/v1"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "rates_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Latest fetches the current rate table.
func (c *Client) Latest(ctx context.Context) (*Snapshot, error) {
	return c.fetch(ctx, latestPath)
}

// Historical fetches the rate table published for day.
func (c *Client) Historical(ctx context.Context, day time.Time) (*Snapshot, error) {
	return c.fetch(ctx, "/"+day.UTC().Format(dayLayout))
}

func (c *Client) fetch(ctx context.Context, path string) (*Snapshot, error) {
	if c.opts.AccessKey == "" {
		return nil, errors.New("rates access key not configured")
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build rates url: %w", err)
	}
	query := endpoint.Query()
	query.Set(accessKeyParam, c.opts.AccessKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "currencyconv/1.0")
	}

	c.logger.Debug().Str("path", path).Msg("requesting rates")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError("request rates", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res ratesResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}

	if !res.Success {
		if res.Error != nil {
			return nil, res.Error
		}
		return nil, errors.New("rates api reported success=false")
	}
	if res.Base == "" || len(res.Rates) == 0 {
		return nil, errors.New("rates api returned an empty table")
	}

	return res.snapshot(), nil
}

type ratesResponse struct {
	Success   bool                       `json:"success"`
	Timestamp int64                      `json:"timestamp"`
	Base      string                     `json:"base"`
	Date      string                     `json:"date"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Error     *APIError                  `json:"error,omitempty"`
}

func (r ratesResponse) snapshot() *Snapshot {
	table := make(map[string]decimal.Decimal, len(r.Rates))
	for code, rate := range r.Rates {
		table[strings.ToUpper(code)] = rate
	}

	var ts time.Time
	if r.Timestamp > 0 {
		ts = time.Unix(r.Timestamp, 0).UTC()
	}

	return &Snapshot{
		Base:      strings.ToUpper(r.Base),
		Date:      r.Date,
		Timestamp: ts,
		Rates:     table,
	}
}

// APIError is the error object the provider embeds in failed responses.
type APIError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	switch {
	case e.Info != "":
		return fmt.Sprintf("rates api error (%d): %s", e.Code, e.Info)
	case e.Type != "":
		return fmt.Sprintf("rates api error (%d): %s", e.Code, e.Type)
	default:
		return fmt.Sprintf("rates api error (%d)", e.Code)
	}
}

func parseHTTPError(status int, payload []byte) error {
	var res ratesResponse
	if err := json.Unmarshal(payload, &res); err == nil && res.Error != nil {
		return fmt.Errorf("rates http %d: %w", status, res.Error)
	}
	if len(payload) > 0 {
		return fmt.Errorf("rates http %d: %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("rates http %d", status)
}

var _ Source = (*Client)(nil)
