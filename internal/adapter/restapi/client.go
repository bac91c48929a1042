package restapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pantrywatch/pantrywatch/internal/adapter"
	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// Config holds the per-source settings for a REST storefront adapter.
type Config struct {
	PlatformID string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

// Client is a resty-backed PlatformAdapter for storefronts exposing a JSON
// product API. One Client instance serves one platform.
type Client struct {
	platformID string
	httpClient *resty.Client
	now        func() time.Time
}

// New builds a REST storefront adapter from the provided configuration.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}

	return &Client{
		platformID: cfg.PlatformID,
		httpClient: restyClient,
		now:        time.Now,
	}
}

// PlatformID returns the stable id this adapter registered under.
func (c *Client) PlatformID() string { return c.platformID }

type searchResponse struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
}

type apiError struct {
	Error string `json:"error"`
}

// Search queries the source's product search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	result := new(searchResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(result).
		SetError(apiErr).
		Get("/products")
	if err != nil {
		return nil, fmt.Errorf("search %q on %s: %w: %v", query, c.platformID, adapter.ErrSourceUnavailable, err)
	}
	if err := c.classify(resp, apiErr); err != nil {
		return nil, fmt.Errorf("search %q on %s: %w", query, c.platformID, err)
	}

	return result.Products, nil
}

// GetPrice fetches a fresh price reading for a known product id.
func (c *Client) GetPrice(ctx context.Context, productID string) (models.PriceQuote, error) {
	quote := new(models.PriceQuote)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(quote).
		SetError(apiErr).
		Get(fmt.Sprintf("/products/%s/price", productID))
	if err != nil {
		return models.PriceQuote{}, fmt.Errorf("price of %s on %s: %w: %v", productID, c.platformID, adapter.ErrSourceUnavailable, err)
	}
	if err := c.classify(resp, apiErr); err != nil {
		return models.PriceQuote{}, fmt.Errorf("price of %s on %s: %w", productID, c.platformID, err)
	}

	if quote.ProductID == "" {
		quote.ProductID = productID
	}
	if quote.CheckedAt.IsZero() {
		quote.CheckedAt = c.now()
	}
	return *quote, nil
}

// GetDetails fetches full product information for a known product id.
func (c *Client) GetDetails(ctx context.Context, productID string) (models.ProductDetails, error) {
	details := new(models.ProductDetails)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(details).
		SetError(apiErr).
		Get(fmt.Sprintf("/products/%s", productID))
	if err != nil {
		return models.ProductDetails{}, fmt.Errorf("details of %s on %s: %w: %v", productID, c.platformID, adapter.ErrSourceUnavailable, err)
	}
	if err := c.classify(resp, apiErr); err != nil {
		return models.ProductDetails{}, fmt.Errorf("details of %s on %s: %w", productID, c.platformID, err)
	}

	return *details, nil
}

// classify maps HTTP status codes onto the adapter error taxonomy.
func (c *Client) classify(resp *resty.Response, apiErr *apiError) error {
	code := resp.StatusCode()
	switch {
	case code < http.StatusBadRequest:
		return nil
	case code == http.StatusNotFound:
		return adapter.ErrNotFound
	case code == http.StatusTooManyRequests:
		return adapter.ErrRateLimited
	default:
		message := ""
		if apiErr != nil {
			message = apiErr.Error
		}
		return fmt.Errorf("%w: status %d %s", adapter.ErrSourceUnavailable, code, message)
	}
}
