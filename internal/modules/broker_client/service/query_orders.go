package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"intraday_bot/internal/models"
)

// QueryOrdersUpdatedAfter returns every order the gateway touched
// strictly after since. This is the reconciler's scan window.
func (c *Client) QueryOrdersUpdatedAfter(ctx context.Context, since time.Time) ([]models.OrderRecord, error) {
	q := url.Values{}
	q.Set("updated_after", strconv.FormatInt(since.UnixMilli(), 10))

	data, err := c.do(ctx, http.MethodGet, "/api/v1/orders?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp ordersResponse
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrapf(err, "query orders: decode %s", data)
	}

	records := make([]models.OrderRecord, 0, len(resp.Orders))
	for _, w := range resp.Orders {
		records = append(records, recordFromWire(w))
	}
	return records, nil
}

// QueryOrder fetches one order by id.
func (c *Client) QueryOrder(ctx context.Context, orderID string) (models.OrderRecord, error) {
	if orderID == "" {
		return models.OrderRecord{}, errors.New("query order: empty id")
	}

	data, err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	if err != nil {
		return models.OrderRecord{}, err
	}

	var w wireOrder
	if err := sonic.Unmarshal(data, &w); err != nil {
		return models.OrderRecord{}, errors.Wrapf(err, "query order: decode %s", data)
	}
	if w.OrderID == "" {
		return models.OrderRecord{}, errors.Errorf("query order %s: not found", orderID)
	}
	return recordFromWire(w), nil
}
