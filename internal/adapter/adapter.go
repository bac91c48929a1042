package adapter

import (
	"context"
	"errors"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// Adapter error taxonomy. Callers classify with errors.Is; the poller decides
// retry behavior from the class, never from the platform.
var (
	// ErrNotFound means the product id no longer resolves on the source.
	ErrNotFound = errors.New("product not found")
	// ErrSourceUnavailable covers transport and auth failures.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRateLimited means the source signalled throttling.
	ErrRateLimited = errors.New("rate limited")
)

// PlatformAdapter is the uniform capability surface over one external
// source. Implementations must be stateless between calls; any session or
// auth caching stays internal to the adapter.
type PlatformAdapter interface {
	// PlatformID returns the stable id the adapter registered under.
	PlatformID() string

	// Search re-queries the source each call and returns up to limit products.
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)

	// GetPrice returns a fresh price reading for a known product id.
	GetPrice(ctx context.Context, productID string) (models.PriceQuote, error)

	// GetDetails returns full product information for a known product id.
	GetDetails(ctx context.Context, productID string) (models.ProductDetails, error)
}

// CartCapable is the optional ordering capability. Most sources do not
// support it; callers must type-assert before use.
type CartCapable interface {
	AddToCart(ctx context.Context, productID string, quantity int) error
}
