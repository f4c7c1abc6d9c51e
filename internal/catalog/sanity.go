// Package catalog talks to the Sanity content store. Products are read via
// GROQ queries; completed orders are written back as order documents with the
// API write token.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/embla/internal/domain"
)

const productQuery = `*[_type == "product" && _id == $id][0]{_id, title, price, "image": image.asset->url}`

type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string

	// WriteToken authorizes order document creation. Queries run without it.
	WriteToken string

	// BaseURL overrides the project API endpoint. Defaults to the project's
	// api.sanity.io host.
	BaseURL string
}

type SanityClient struct {
	config     Config
	baseURL    string
	httpClient *http.Client
}

var (
	_ domain.Catalog     = (*SanityClient)(nil)
	_ domain.OrderWriter = (*SanityClient)(nil)
)

func NewSanityClient(config Config) *SanityClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.api.sanity.io", config.ProjectID)
	}
	return &SanityClient{
		config:  config,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Product fetches a catalog product by Sanity document id. Prices are stored
// in Sanity as decimal dollars and converted to cents here.
func (c *SanityClient) Product(ctx context.Context, productID string) (*domain.CatalogProduct, error) {
	params := url.Values{}
	params.Set("query", productQuery)
	params.Set("$id", fmt.Sprintf("%q", productID))

	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s",
		c.baseURL, c.config.APIVersion, c.config.Dataset, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("product query returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Result *struct {
			ID    string  `json:"_id"`
			Title string  `json:"title"`
			Price float64 `json:"price"`
			Image string  `json:"image"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode product query: %w", err)
	}
	if result.Result == nil {
		return nil, domain.ErrProductNotFound
	}

	return &domain.CatalogProduct{
		ID:         result.Result.ID,
		Title:      result.Result.Title,
		PriceCents: int64(math.Round(result.Result.Price * 100)),
		ImageURL:   result.Result.Image,
	}, nil
}

// CreateOrder writes an order document through the mutation API.
func (c *SanityClient) CreateOrder(ctx context.Context, order domain.Order) error {
	doc := map[string]interface{}{
		"_type":                   "order",
		"orderNumber":             order.OrderNumber,
		"orderDate":               order.OrderDate.UTC().Format(time.RFC3339),
		"customerEmail":           order.CustomerEmail,
		"customerName":            order.CustomerName,
		"stripeCheckoutSessionId": order.CheckoutSessionID,
		"stripePaymentIntentId":   order.PaymentIntentID,
		"totalPrice":              float64(order.TotalPriceCents) / 100,
		"status":                  order.Status,
		"shippingAddress": map[string]interface{}{
			"_type":       "shippingAddress",
			"name":        order.ShippingAddress.Name,
			"line1":       order.ShippingAddress.Line1,
			"line2":       order.ShippingAddress.Line2,
			"city":        order.ShippingAddress.City,
			"state":       order.ShippingAddress.State,
			"postal_code": order.ShippingAddress.PostalCode,
			"country":     order.ShippingAddress.Country,
		},
	}
	if order.CustomerID != "" {
		doc["customerId"] = order.CustomerID
	}

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"_type": "orderItem",
			"_key":  uuid.NewString(),
			"product": map[string]interface{}{
				"_type": "reference",
				"_ref":  item.ProductID,
			},
			"quantity": item.Quantity,
			"price":    float64(item.PriceCents) / 100,
		})
	}
	doc["orderItems"] = items

	payload, err := json.Marshal(map[string]interface{}{
		"mutations": []map[string]interface{}{
			{"create": doc},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode order document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s",
		c.baseURL, c.config.APIVersion, c.config.Dataset)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build order mutation: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.WriteToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("order mutation returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
