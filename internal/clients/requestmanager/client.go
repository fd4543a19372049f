// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package requestmanager

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

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
	// APIVersion is the request manager's API version path segment.
	APIVersion = "v1"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets a custom timeout for HTTP requests.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// Client is a request manager API client.
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
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidConfig)
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
	if err := client.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return client, nil
}

func (c *Client) buildURL(endpoint string) string {
	return fmt.Sprintf("%s/api/%s%s", c.baseURL, APIVersion, endpoint)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "arrwatch/1.0")
	return req, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, endpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("method", method).Str("endpoint", endpoint).Msg("making request manager API request")

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
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}

		var errResp struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		if apiErr.IsUnauthorized() {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, apiErr)
		}
		if apiErr.IsNotFound() {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, apiErr)
		}
		return nil, apiErr
	}

	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	body, err := c.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// TestConnection verifies reachability and the API key, for use by health
// checkers and by NewClient itself.
func (c *Client) TestConnection(ctx context.Context) error {
	var user struct {
		ID int `json:"id"`
	}
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return err
	}
	c.logger.Debug().Int("user_id", user.ID).Msg("connected to request manager")
	return nil
}

// DeleteRequest removes a media request by id. This is the only outbound
// call arrwatch makes to the request manager (§4H, §6).
func (c *Client) DeleteRequest(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("/request/%d", id)
	if _, err := c.doRequest(ctx, http.MethodDelete, endpoint); err != nil {
		if strings.Contains(err.Error(), ErrNotFound.Error()) {
			c.logger.Debug().Int64("request_id", id).Msg("request already absent from request manager")
			return nil
		}
		return fmt.Errorf("requestmanager: delete request %d: %w", id, err)
	}
	c.logger.Info().Int64("request_id", id).Msg("deleted request")
	return nil
}
