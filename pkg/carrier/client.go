package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
)

const (
	defaultTimeout        = 10 * time.Second
	requestBodyReadLimit  = 8 << 10
	trackingRetryAttempts = 2
	trackingRetryBackoff  = 500 * time.Millisecond
)

var errAPIKeyRequired = errors.New("carrier api key is required")

// Client talks to the shipping aggregator that fronts the physical carriers.
// Label creation and tracking lookups go through here; the core never speaks
// a carrier protocol directly.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests inject an httptest client).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the aggregator endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a carrier client. The base URL must point at the
// aggregator deployment for the current environment.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
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
		return nil, errors.New("carrier base url is required")
	}
	return client, nil
}

// LabelRequest describes the shipment submitted for label creation.
type LabelRequest struct {
	Carrier     enums.Carrier  `json:"carrier"`
	ShipmentRef string         `json:"shipment_ref"`
	Recipient   LabelRecipient `json:"recipient"`
	BottleCount int            `json:"bottle_count"`
}

// LabelRecipient is the destination block of a label request.
type LabelRecipient struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Label is the aggregator's response to a label request.
type Label struct {
	TrackingNumber string `json:"tracking_number"`
	LabelURL       string `json:"label_url,omitempty"`
}

// TrackingUpdate is one scan event on a parcel's journey.
type TrackingUpdate struct {
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingInfo is the current carrier view of a parcel.
type TrackingInfo struct {
	Status   string           `json:"status"`
	Location string           `json:"location,omitempty"`
	Updates  []TrackingUpdate `json:"updates,omitempty"`
}

// CreateLabel requests a shipping label and returns the tracking number.
func (c *Client) CreateLabel(ctx context.Context, req LabelRequest) (*Label, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if !req.Carrier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier is required")
	}
	if strings.TrimSpace(req.ShipmentRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment ref is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal label request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("labels"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build label request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute label request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "label request failed")
	}

	var label Label
	if err := json.NewDecoder(resp.Body).Decode(&label); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode label response")
	}
	if strings.TrimSpace(label.TrackingNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "label response missing tracking number")
	}
	return &label, nil
}

// GetTracking fetches the latest tracking state for a parcel.
func (c *Client) GetTracking(ctx context.Context, carrierName enums.Carrier, trackingNumber string) (*TrackingInfo, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	trimmed := strings.TrimSpace(trackingNumber)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	endpoint := fmt.Sprintf("%s/tracking/%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(carrierName.String()), url.PathEscape(trimmed))

	// Tracking lookups are idempotent GETs; transient aggregator failures
	// are retried with backoff before the caller sees an error.
	var info TrackingInfo
	backoff := retry.WithMaxRetries(trackingRetryAttempts, retry.NewExponential(trackingRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build tracking request")
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute tracking request"))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
			failure := pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "tracking request failed")
			if resp.StatusCode >= http.StatusInternalServerError {
				return retry.RetryableError(failure)
			}
			return failure
		}

		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tracking response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
