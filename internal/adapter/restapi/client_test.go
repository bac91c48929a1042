package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pantrywatch/pantrywatch/internal/adapter"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := New(Config{PlatformID: "testmart", BaseURL: ts.URL})
	return ts, client
}

func TestSearchDecodesProducts(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "milk" {
			t.Fatalf("query q = %q, want milk", got)
		}
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Fatalf("query limit = %q, want 3", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[{"product_id":"p1","name":"Milk 2L","price":3.5,"unit_price":1.75,"in_stock":true}],"total":1}`))
	})

	products, err := client.Search(context.Background(), "milk", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}
	if products[0].ProductID != "p1" || products[0].UnitPrice != 1.75 {
		t.Fatalf("unexpected product %+v", products[0])
	}
}

func TestGetPriceFillsDefaults(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/p1/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price":3.2,"unit_price":1.6,"in_stock":true}`))
	})

	quote, err := client.GetPrice(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if quote.ProductID != "p1" {
		t.Fatalf("product id = %q, want p1", quote.ProductID)
	}
	if quote.CheckedAt.IsZero() {
		t.Fatal("checked_at must default to now")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, adapter.ErrNotFound},
		{"throttled", http.StatusTooManyRequests, adapter.ErrRateLimited},
		{"server error", http.StatusInternalServerError, adapter.ErrSourceUnavailable},
		{"bad gateway", http.StatusBadGateway, adapter.ErrSourceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":"nope"}`))
			})

			_, err := client.GetPrice(context.Background(), "p1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}

			_, err = client.Search(context.Background(), "milk", 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("search error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransportFailureIsSourceUnavailable(t *testing.T) {
	ts, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close()

	_, err := client.GetDetails(context.Background(), "p1")
	if !errors.Is(err, adapter.ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
}
