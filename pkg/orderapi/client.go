package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/orders"
)

const resource = "orders"

var (
	// ErrNoData is returned when the order service answers without a payload.
	ErrNoData = errors.New("order service returned no data")
	// ErrNotFound is returned when the order service does not know the order.
	ErrNotFound = errors.New("order not found")
)

// API is the subset of aqm.ServiceClient the client relies on.
type API interface {
	Get(ctx context.Context, resource, id string) (*aqm.SuccessResponse, error)
	List(ctx context.Context, resource string) (*aqm.SuccessResponse, error)
	Create(ctx context.Context, resource string, payload interface{}) (*aqm.SuccessResponse, error)
	Request(ctx context.Context, method, path string, body interface{}) (*aqm.SuccessResponse, error)
	Delete(ctx context.Context, resource, id string) error
}

// Client talks to the order-of-record service.
type Client struct {
	api API
}

func New(baseURL string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("order service url is required")
	}

	client := aqm.NewServiceClient(baseURL)
	if client == nil {
		return nil, errors.New("cannot create order service client")
	}

	return NewWithAPI(newServiceAPI(baseURL, client)), nil
}

func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

func (c *Client) CreateOrder(ctx context.Context, req orders.CreateRequest) (*orders.Order, error) {
	resp, err := c.api.Create(ctx, resource, req)
	if err != nil {
		return nil, fmt.Errorf("cannot create order: %w", err)
	}

	return decodeOrder(resp)
}

// GetOrder accepts either the orderId or the _id of an order.
func (c *Client) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("order id is required")
	}

	resp, err := c.api.Get(ctx, resource, url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("cannot get order %s: %w", id, err)
	}

	return decodeOrder(resp)
}

func (c *Client) ListOrders(ctx context.Context) ([]*orders.Order, error) {
	resp, err := c.api.List(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}

	var list []*orders.Order
	if err := decodeSuccessResponse(resp, &list); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return list, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id string, update orders.StatusUpdate) (*orders.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("order id is required")
	}

	path := fmt.Sprintf("/%s/%s/status", resource, url.PathEscape(id))
	resp, err := c.api.Request(ctx, "PATCH", path, update)
	if err != nil {
		return nil, fmt.Errorf("cannot update order %s: %w", id, err)
	}

	return decodeOrder(resp)
}

func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("order id is required")
	}

	if err := c.api.Delete(ctx, resource, url.PathEscape(id)); err != nil {
		return fmt.Errorf("cannot delete order %s: %w", id, err)
	}
	return nil
}

func decodeOrder(resp *aqm.SuccessResponse) (*orders.Order, error) {
	if resp == nil || resp.Data == nil {
		return nil, ErrNoData
	}

	var o orders.Order
	if err := decodeSuccessResponse(resp, &o); err != nil {
		return nil, fmt.Errorf("cannot decode order: %w", err)
	}
	if o.Key() == "" {
		return nil, ErrNoData
	}

	return &o, nil
}

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}
