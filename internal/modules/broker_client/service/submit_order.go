package service

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"intraday_bot/internal/models"
)

// SubmitOrder places one order and returns the broker-assigned id.
func (c *Client) SubmitOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", errors.New("submit order: quantity <= 0")
	}
	if req.Kind == models.OrderLimit && req.Price <= 0 {
		return "", errors.New("submit order: limit order without price")
	}

	payload, err := sonic.Marshal(submitRequest{
		Symbol:    req.Symbol,
		Side:      sideToWire(req.Side),
		OrderType: kindToWire(req.Kind),
		Price:     req.Price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return "", errors.Wrap(err, "submit order: marshal")
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/orders", payload)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return "", errors.Wrapf(err, "submit order: decode %s", data)
	}
	if resp.Error != "" {
		return "", errors.Errorf("submit order rejected: %s", resp.Error)
	}
	if resp.OrderID == "" {
		return "", errors.Errorf("submit order: empty order id in %s", data)
	}
	return resp.OrderID, nil
}
