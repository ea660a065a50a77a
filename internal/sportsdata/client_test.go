package sportsdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(f roundTripperFunc) *Client {
	return &Client{
		Endpoint:   "https://api.sportsdata.io/v3/nba/scores/json/Players",
		APIKey:     "test_api_key",
		HTTPClient: &http.Client{Transport: f},
	}
}

func TestFetch_ReturnsRecordsUnmodified(t *testing.T) {
	var calls int
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "test_api_key", req.Header.Get(APIKeyHeader))
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`[{"PlayerID": 1, "FirstName": "Test"}]`)),
			Header:     http.Header{},
		}, nil
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"PlayerID": 1, "FirstName": "Test"}`, string(records[0]))

	players, err := records.Players()
	require.NoError(t, err)
	assert.Equal(t, 1, players[0].PlayerID)
	assert.Equal(t, "Test", players[0].FirstName)
}

func TestFetch_NetworkError(t *testing.T) {
	client := newTestClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	records, err := FetchOrEmpty(context.Background(), client, zerolog.Nop())
	require.Error(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"statusCode": 401, "message": "Access denied due to invalid subscription key."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad", 0)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "401")

	records, err := FetchOrEmpty(context.Background(), client, zerolog.Nop())
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestFetch_NotAnArray(t *testing.T) {
	client := newTestClient(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"PlayerID": 1}`)),
			Header:     http.Header{},
		}, nil
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode players response")
}

func TestFetch_TrailingDataRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"PlayerID":1}]<html>upstream error</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second)

	records, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrailingData)
	assert.Nil(t, records)

	records, err = FetchOrEmpty(context.Background(), client, zerolog.Nop())
	assert.Error(t, err)
	assert.NotNil(t, records)
	assert.True(t, records.Empty())
}

func TestFetch_TrailingWhitespaceAccepted(t *testing.T) {
	client := newTestClient(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString("[{\"PlayerID\": 1}]\n\n")),
			Header:     http.Header{},
		}, nil
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, records.Len())
}

func TestFetchOrEmpty_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"PlayerID": 1}, {"PlayerID": 2}]`))
	}))
	defer srv.Close()

	records, err := FetchOrEmpty(context.Background(), NewClient(srv.URL, "k", 0), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, records.Len())
}
