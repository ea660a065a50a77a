// Package sportsdata fetches the NBA Players feed from sportsdata.io.
package sportsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/nba-datalake/internal/domain"
)

// APIKeyHeader carries the subscription key on every request.
const APIKeyHeader = "Ocp-Apim-Subscription-Key"

var (
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrTrailingData is returned when the body holds more than one JSON value.
	ErrTrailingData = errors.New("trailing data after players array")
)

// Fetcher returns the current player records.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Records, error)
}

// Client is a single-endpoint sportsdata.io client.
type Client struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient builds a Client. A zero timeout keeps the http.Client default.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Fetch performs one GET and decodes the body as a JSON array.
func (c *Client) Fetch(ctx context.Context) (domain.Records, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d from %s: %s", ErrUnexpectedStatus, resp.StatusCode, c.Endpoint, snippet)
	}

	dec := json.NewDecoder(resp.Body)
	var records domain.Records
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode players response: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode players response: %w", ErrTrailingData)
	}
	return records, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// FetchOrEmpty calls f and converts any failure into an empty result,
// logging the cause. An empty result stops the downstream load.
func FetchOrEmpty(ctx context.Context, f Fetcher, l zerolog.Logger) (domain.Records, error) {
	records, err := f.Fetch(ctx)
	if err != nil {
		l.Error().Err(err).Msg("Error fetching NBA data")
		return domain.Records{}, err
	}
	l.Info().Int("records", len(records)).Msg("Fetched NBA data successfully")
	return records, nil
}
