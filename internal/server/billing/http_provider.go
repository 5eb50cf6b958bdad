package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPProvider talks to the provider's REST API with a secret bearer key.
type HTTPProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPProvider(baseURL, secretKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type productListBody struct {
	Data    []Product `json:"data"`
	HasMore bool      `json:"has_more"`
}

type priceListBody struct {
	Data []struct {
		Price
		Recurring *struct {
			Interval string `json:"interval"`
		} `json:"recurring"`
	} `json:"data"`
	HasMore bool `json:"has_more"`
}

func (p *HTTPProvider) ListProducts(ctx context.Context, cursor string, limit int) (*ProductPage, error) {
	var body productListBody
	if err := p.list(ctx, "/v1/products", cursor, limit, nil, &body); err != nil {
		return nil, err
	}

	page := &ProductPage{Products: body.Data}
	if body.HasMore && len(body.Data) > 0 {
		page.Cursor = body.Data[len(body.Data)-1].ID
	}
	return page, nil
}

func (p *HTTPProvider) ListPrices(ctx context.Context, cursor string, limit int) (*PricePage, error) {
	var body priceListBody
	extra := url.Values{"type": {"recurring"}, "active": {"true"}}
	if err := p.list(ctx, "/v1/prices", cursor, limit, extra, &body); err != nil {
		return nil, err
	}

	page := &PricePage{}
	for _, item := range body.Data {
		price := item.Price
		if item.Recurring == nil {
			continue
		}
		price.Interval = item.Recurring.Interval
		page.Prices = append(page.Prices, price)
	}
	if body.HasMore && len(body.Data) > 0 {
		page.Cursor = body.Data[len(body.Data)-1].ID
	}
	return page, nil
}

func (p *HTTPProvider) list(ctx context.Context, path, cursor string, limit int, extra url.Values, out any) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("starting_after", cursor)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("billing provider: %s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
