package market

import "context"

type Ticker struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	High24h   float64 `json:"high_24h,omitempty"`
	Low24h    float64 `json:"low_24h,omitempty"`
	Change24h float64 `json:"change_24h,omitempty"`
	Volume24h float64 `json:"volume_24h,omitempty"`
}

type FundingRatePoint struct {
	Symbol      string  `json:"symbol"`
	FundingRate float64 `json:"funding_rate"`
	Timestamp   int64   `json:"timestamp"`
}

type LongShortRatioPoint struct {
	Symbol    string  `json:"symbol"`
	BuyRatio  float64 `json:"buy_ratio"`
	SellRatio float64 `json:"sell_ratio"`
	Timestamp int64   `json:"timestamp"`
}

// LiveQuote 跨交易所实时价查询结果，ProviderID 标记由哪个备援交易所返回。
type LiveQuote struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	ProviderID string  `json:"provider_id"`
	IsLive     bool    `json:"is_live"`
}

// Source 主行情数据源（K线/Ticker/资金费率/多空比）。
type Source interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	GetTicker(ctx context.Context, symbol string) (Ticker, error)

	GetFundingHistory(ctx context.Context, symbol string, limit int) ([]FundingRatePoint, error)

	GetLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]LongShortRatioPoint, error)
}

// QuoteProvider 备援池中的单个报价源。Supports 返回 false 表示该交易所
// 没有这个交易对的映射，池会直接跳过而不记为失败。
type QuoteProvider interface {
	ID() string

	Supports(symbol string) bool

	Ping(ctx context.Context) error

	GetQuote(ctx context.Context, symbol string) (*LiveQuote, error)
}
