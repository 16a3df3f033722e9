package models

// Instrument is static per-symbol metadata from the stock master.
// BasePrice is yesterday's close, used for gap evaluation.
type Instrument struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	BasePrice         float64 `json:"basePrice"`
	MarketCap         float64 `json:"marketCap"`
	LotSize           float64 `json:"lotSize"`
	SharesOutstanding float64 `json:"sharesOutstanding"`
}
