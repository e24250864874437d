package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

const (
	defaultTimeout       = 10 * time.Second
	requestBodyReadLimit = 8 << 10
)

// Client wraps the geocoding provider used to validate delivery addresses
// before a shipment is accepted.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a maps client.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errors.New("maps api key is required")
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		return nil, errors.New("maps base url is required")
	}
	return client, nil
}

// Validation is the provider's verdict on a candidate address.
type Validation struct {
	Deliverable bool          `json:"deliverable"`
	Normalized  types.Address `json:"normalized"`
}

// ValidateAddress checks deliverability and returns the normalized form.
func (c *Client) ValidateAddress(ctx context.Context, address types.Address) (*Validation, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client not configured")
	}

	payload, err := json.Marshal(struct {
		Address types.Address `json:"address"`
	}{Address: address})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal validation request")
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/v1/addresses:validate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build validation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute validation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "validation request failed")
	}

	var validation Validation
	if err := json.NewDecoder(resp.Body).Decode(&validation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode validation response")
	}
	return &validation, nil
}
