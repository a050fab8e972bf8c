// Package marketdata downloads daily closing-price series for an index
// or ticker over HTTP. The default endpoint is stooq.com's CSV export,
// which serves OHLCV history without authentication.
package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNoData indicates the endpoint returned an empty or
	// unparseable series for the requested symbol and range.
	ErrNoData = errors.New("no market data")

	// ErrRequestFailed indicates the download failed after all retries.
	ErrRequestFailed = errors.New("market data request failed")
)

const (
	defaultBaseURL = "https://stooq.com/q/d/l/"
	defaultRetries = 3
)

// Quote is one day's closing price.
type Quote struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Client fetches daily price history. Requests are rate limited and
// retried with linear backoff on transient failures.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a market data client. Pass a nil logger to use
// slog.Default.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		baseURL:    defaultBaseURL,
		retries:    defaultRetries,
		backoff:    time.Second,
		logger:     logger,
	}
}

// SetBaseURL overrides the endpoint, primarily for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// SetHTTPClient overrides the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// DailyCloses downloads the daily close series for symbol between from
// and to, oldest first. Rows with an unparseable or non-positive close
// (non-trading days in stooq exports) are skipped.
func (c *Client) DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrRequestFailed)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from %s is not before to %s", ErrRequestFailed, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	reqURL := fmt.Sprintf("%s?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL,
		url.QueryEscape(strings.ToLower(symbol)),
		from.Format("20060102"),
		to.Format("20060102"),
	)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		quotes, err := c.fetch(ctx, reqURL)
		if err == nil {
			c.logger.InfoContext(ctx, "market data downloaded",
				"symbol", symbol,
				"quotes", len(quotes),
				"from", from.Format("2006-01-02"),
				"to", to.Format("2006-01-02"),
			)
			return quotes, nil
		}
		if errors.Is(err, ErrNoData) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		c.logger.WarnContext(ctx, "market data attempt failed",
			"symbol", symbol,
			"attempt", attempt,
			"error", err,
		)
		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRequestFailed, c.retries, lastErr)
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseCSV(resp.Body)
}

// parseCSV reads a stooq daily export: a header row followed by
// Date,Open,High,Low,Close,Volume rows in ascending date order.
func parseCSV(r io.Reader) ([]Quote, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrNoData
	}

	header := records[0]
	dateIdx, closeIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("%w: missing Date/Close columns", ErrNoData)
	}

	quotes := make([]Quote, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) <= dateIdx || len(rec) <= closeIdx {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil || closePrice <= 0 {
			continue
		}
		quotes = append(quotes, Quote{Date: date, Close: closePrice})
	}
	if len(quotes) == 0 {
		return nil, ErrNoData
	}
	return quotes, nil
}

// Closes extracts the close values from a quote series.
func Closes(quotes []Quote) []float64 {
	closes := make([]float64, len(quotes))
	for i, q := range quotes {
		closes[i] = q.Close
	}
	return closes
}
