// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animeservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets a custom timeout for HTTP requests.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// ImportFolder is one of the anime service's configured import
// directories; the correlator's path rule resolves a relative path by
// joining it onto the matching folder's absolute path (§4B).
type ImportFolder struct {
	ID                int
	Name              string
	Path              string
	IsDropDestination bool
}

// Client is an anime metadata service API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a Client and verifies connectivity.
func NewClient(baseURL, apiKey string, logger zerolog.Logger, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidConfig)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(client)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.GetImportFolders(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return client, nil
}

// TestConnection re-verifies reachability, for use by health checkers.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetImportFolders(ctx)
	return err
}

// GetImportFolders fetches the anime service's configured import-folder
// metadata, the data the correlator's path-resolution rule needs (§4B).
// Callers are expected to cache the result (internal/cache, TTL +
// singleflight) rather than calling this on every correlation.
func (c *Client) GetImportFolders(ctx context.Context) ([]ImportFolder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/ImportFolder", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body), Message: http.StatusText(resp.StatusCode)}
	}

	var dtos []struct {
		ImportFolderID       int    `json:"ImportFolderID"`
		ImportFolderName     string `json:"ImportFolderName"`
		ImportFolderLocation string `json:"ImportFolderLocation"`
		IsDropDestination    int    `json:"IsDropDestination"`
	}
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("parsing import folders response: %w", err)
	}

	out := make([]ImportFolder, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, ImportFolder{
			ID:                d.ImportFolderID,
			Name:              d.ImportFolderName,
			Path:              d.ImportFolderLocation,
			IsDropDestination: d.IsDropDestination != 0,
		})
	}
	return out, nil
}
