package service

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// CancelOrder asks the gateway to pull an order. A synchronous ok only
// means the cancel was accepted; the terminal status still arrives via
// the poll loop.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return errors.New("cancel order: empty id")
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", nil)
	if err != nil {
		return err
	}

	var resp cancelResponse
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return errors.Wrapf(err, "cancel order: decode %s", data)
	}
	if resp.Error != "" {
		return errors.Errorf("cancel order %s: %s", orderID, resp.Error)
	}
	if !resp.Cancelled {
		return errors.Errorf("cancel order %s: not cancelled", orderID)
	}
	return nil
}
