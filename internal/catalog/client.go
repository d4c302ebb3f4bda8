package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
	"github.com/BeoGonzalez/gamershop/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is a read-only HTTP client for the catalog API. The cart never
// writes to the catalog; it only snapshots product data at add time.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
}

// NewClient creates a catalog client against the given base URL.
func NewClient(httpClient HTTPDoer, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// GetProduct fetches a product by ID. A 404 from the catalog maps to
// ErrNotFound; malformed product records are rejected here so downstream
// code never sees them.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	reqURL := c.baseURL + "/api/productos/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create product request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	// The catalog is a foreign API; its 404 body does not follow our error
	// envelope, so the status alone decides here.
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("product", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var product domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}

	if err := validateProduct(&product); err != nil {
		return nil, err
	}

	return &product, nil
}

// validateProduct rejects malformed catalog records at the boundary.
func validateProduct(p *domain.Product) error {
	if p.ID == "" {
		return apperrors.Internal(fmt.Errorf("catalog returned product without id"))
	}
	if p.Name == "" {
		return apperrors.Internal(fmt.Errorf("catalog product %s has no name", p.ID))
	}
	if p.Price < 0 {
		return apperrors.Internal(fmt.Errorf("catalog product %s has negative price %d", p.ID, p.Price))
	}
	if p.Stock < 0 {
		return apperrors.Internal(fmt.Errorf("catalog product %s has negative stock %d", p.ID, p.Stock))
	}
	return nil
}
