package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"intraday_bot/internal/modules/config"
)

// Client talks to the broker gateway over signed JSON/HTTP. The gateway
// is pull-only: it confirms submits and cancels synchronously but never
// pushes order progress, so fills are discovered by polling the query
// endpoints.
type Client struct {
	cfg  config.BrokerConfig
	http *http.Client
}

func NewClient(cfg config.BrokerConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) sign(ts, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	h.Write([]byte(ts + method + path + body))
	return hex.EncodeToString(h.Sum(nil))
}

// do sends one signed request and returns the response body, failing on
// any non-2xx status.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s: new request", method, path)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-API-TIMESTAMP", ts)
	req.Header.Set("X-API-SIGN", c.sign(ts, method, path, string(payload)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s: read body", method, path)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, data)
	}
	return data, nil
}
