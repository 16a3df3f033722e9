package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	"intraday_bot/pkg/logger"
)

// Client loads the stock master: static per-symbol metadata served by
// the tick server, one snapshot per trading day.
type Client struct {
	cfg  config.TickServerConfig
	http *http.Client
	loc  *time.Location
}

func NewClient(cfg config.TickServerConfig) *Client {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		loc:  loc,
	}
}

type wireStock struct {
	IssueCode             string  `json:"issueCode"`
	Name                  string  `json:"name"`
	BasePrice10           float64 `json:"basePrice10"`
	LotSize               float64 `json:"lotSize"`
	CalcSharesOutstanding float64 `json:"calcSharesOutstanding"`
}

// Fetch downloads today's stock master. Prices come in tenths of a yen;
// market cap is derived as shares outstanding times the base price.
func (c *Client) Fetch(ctx context.Context) (map[string]models.Instrument, error) {
	date := time.Now().In(c.loc).Format("20060102")
	url := c.cfg.HTTPURL + "/metadata/stockmaster_" + date

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "stock master: new request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "stock master: fetch")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "stock master: read body")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("stock master: http %d: %s", resp.StatusCode, data)
	}

	raw := map[string]wireStock{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		// the server sometimes double-encodes: a JSON string holding JSON
		var inner string
		if err2 := sonic.Unmarshal(data, &inner); err2 != nil {
			return nil, errors.Wrap(err, "stock master: decode")
		}
		if err2 := sonic.Unmarshal([]byte(inner), &raw); err2 != nil {
			return nil, errors.Wrap(err2, "stock master: decode inner")
		}
	}

	out := make(map[string]models.Instrument, len(raw))
	for code, w := range raw {
		base := w.BasePrice10 / 10
		out[code] = models.Instrument{
			Symbol:            code,
			Name:              w.Name,
			BasePrice:         base,
			MarketCap:         w.CalcSharesOutstanding * base,
			LotSize:           w.LotSize,
			SharesOutstanding: w.CalcSharesOutstanding,
		}
	}
	logger.Info("stock master: loaded %d instruments for %s", len(out), date)
	return out, nil
}
