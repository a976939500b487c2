// Package apiclient implements console.Gateway and console.Authenticator over
// the order backend's HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/odyssey-erp/distro/internal/catalog"
	"github.com/odyssey-erp/distro/internal/console"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Client talks to the backend with a fixed timeout and no retries.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	logger *slog.Logger
}

var (
	_ console.Gateway       = (*Client)(nil)
	_ console.Authenticator = (*Client)(nil)
)

// New constructs a Client from cfg.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// SetTokenSource wires the session whose token authorises every call.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func (c *Client) Login(ctx context.Context, email, password string) (*console.LoginResult, error) {
	var res console.LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout revokes token. It does not use the token source since the session
// has already dropped it.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, map[string]string{"Authorization": "Bearer " + token}, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchClients decodes every client through the normalising adapter.
func (c *Client) SearchClients(ctx context.Context, query string) ([]catalog.Client, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/clients/search", url.Values{"q": {query}}, nil, nil, &raw); err != nil {
		return nil, err
	}
	clients, err := catalog.NormalizeClients(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", console.ErrTransport, err)
	}
	return clients, nil
}

func (c *Client) ListMunicipalities(ctx context.Context) ([]catalog.Municipality, error) {
	var out []catalog.Municipality
	if err := c.do(ctx, http.MethodGet, "/logistics/municipalities", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, req console.SaveOrderRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, nil, &out); err != nil {
		return 0, err
	}
	if out.ID <= 0 {
		return 0, fmt.Errorf("%w: create order returned no id", console.ErrTransport)
	}
	return out.ID, nil
}

func (c *Client) UpdateOrder(ctx context.Context, id int64, req console.SaveOrderRequest) error {
	return c.do(ctx, http.MethodPut, orderPath(id, ""), nil, req, nil, nil)
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*console.OrderSnapshot, error) {
	var out console.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, orderPath(id, ""), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchDraftOrders(ctx context.Context, q console.DraftQuery) ([]console.OrderSnapshot, error) {
	params := url.Values{}
	if q.Phone != "" {
		params.Set("phone", q.Phone)
	} else {
		params.Set("name", q.Name)
	}
	var out []console.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, "/orders/drafts/search", params, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConfirmOrder(ctx context.Context, id int64, req console.ConfirmRequest) error {
	return c.do(ctx, http.MethodPatch, orderPath(id, "confirm"), nil, req, nil, nil)
}

// RecordPayment sends the idempotency key as a header when present.
func (c *Client) RecordPayment(ctx context.Context, id int64, req console.PaymentRequest) error {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}
	return c.do(ctx, http.MethodPatch, orderPath(id, "payment"), nil, req, headers, nil)
}

func (c *Client) SetOrderStatus(ctx context.Context, id int64, req console.StatusRequest) error {
	return c.do(ctx, http.MethodPatch, orderPath(id, "status"), nil, req, nil, nil)
}

func (c *Client) ConfirmDelivery(ctx context.Context, id int64, req console.DeliveryRequest) error {
	return c.do(ctx, http.MethodPatch, orderPath(id, "delivery"), nil, req, nil, nil)
}

func (c *Client) ListOrders(ctx context.Context, filter console.ListFilter) ([]console.OrderSnapshot, error) {
	params := url.Values{}
	if filter.Last2Weeks {
		params.Set("last_2_weeks", "true")
	}
	if len(filter.Statuses) > 0 {
		parts := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			parts = append(parts, string(s))
		}
		params.Set("status", strings.Join(parts, ","))
	}
	var out []console.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, "/orders", params, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func orderPath(id int64, action string) string {
	p := "/orders/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%w: %v", console.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%w: %v", console.ErrTransport, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", console.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
			apiErr.Status = resp.StatusCode
		}
		c.logger.Debug("api error", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode), slog.String("code", apiErr.Code))
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", console.ErrTransport, method, path, err)
	}
	return nil
}

// Unauthorized reports whether err means the session must log in again.
func Unauthorized(err error) bool {
	return errors.Is(err, console.ErrUnauthorized)
}
