package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/pagination"
)

func TestClassifyError(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{name: "network error", err: errors.New("connection refused"), expected: ErrorClassNetwork},
		{name: "unauthorized", statusCode: 401, expected: ErrorClassClient},
		{name: "bad query", statusCode: 400, expected: ErrorClassClient},
		{name: "too many requests", statusCode: 429, expected: ErrorClassRateLimit},
		{name: "server error", statusCode: 500, expected: ErrorClassServer},
		{name: "bad gateway", statusCode: 502, expected: ErrorClassServer},
		{name: "success", statusCode: 200, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.classifyError(tt.statusCode, tt.err); got != tt.expected {
				t.Errorf("classifyError(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with body",
			apiError: &APIError{
				StatusCode: 400,
				Status:     "400 Bad Request",
				Class:      ErrorClassClient,
				Body:       []byte(`[{"title":"Syntax Error"}]`),
			},
			expected: `IGDB client error (status 400): 400 Bad Request: [{"title":"Syntax Error"}]`,
		},
		{
			name: "error without body",
			apiError: &APIError{
				StatusCode: 503,
				Status:     "503 Service Unavailable",
				Class:      ErrorClassServer,
			},
			expected: "IGDB server error (status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_TruncatesBody(t *testing.T) {
	e := &APIError{
		StatusCode: 500,
		Status:     "500 Internal Server Error",
		Class:      ErrorClassServer,
		Body:       []byte(strings.Repeat("x", 1000)),
	}

	if got := len(e.Error()); got > 300 {
		t.Errorf("len(Error()) = %d, want body truncated", got)
	}
}

func TestAPIError_StatusInTransportError(t *testing.T) {
	apiErr := &APIError{StatusCode: 429, Status: "429 Too Many Requests", Class: ErrorClassRateLimit}
	f := fetcherFunc(func() error { return apiErr })

	_, err := pagination.NewBatchFetcher(f).FetchBatch(context.Background(), catalog.KindGames, "fields name;", 0)

	var te *pagination.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *pagination.TransportError", err)
	}
	if te.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", te.StatusCode)
	}

	var got *APIError
	if !errors.As(err, &got) || got != apiErr {
		t.Error("TransportError should wrap the *APIError")
	}
}
