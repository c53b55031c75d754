package aggregate

import (
	"sibyl/internal/market"
)

type SourceType string

const (
	SourceMarket      SourceType = "market"
	SourceLivePrice   SourceType = "live_price"
	SourceWeb         SourceType = "web"
	SourceFallback    SourceType = "fallback"
	SourceCalculation SourceType = "calculation"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SourceResult 一次取数/计算尝试的结果，失败时 Error 保留原因文本。
type SourceResult struct {
	SourceType SourceType `json:"source_type"`
	Resource   string     `json:"resource"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

func (r SourceResult) OK() bool { return r.Status == StatusSuccess }

// AggregatedData 一次计划执行的全部产出。Results 按尝试逐条记录，
// 其余字段是成功数据的便捷访问入口。
type AggregatedData struct {
	Results []SourceResult `json:"results"`

	Klines        map[string][]market.Candle              `json:"-"`
	Tickers       map[string]market.Ticker                `json:"tickers,omitempty"`
	Funding       map[string][]market.FundingRatePoint    `json:"funding,omitempty"`
	LongShort     map[string][]market.LongShortRatioPoint `json:"long_short,omitempty"`
	LiveQuote     *market.LiveQuote                       `json:"live_quote,omitempty"`
	FallbackQuote *market.LiveQuote                       `json:"fallback_quote,omitempty"`
	WebContent    map[string]string                       `json:"web_content,omitempty"`
	Indicators    map[string]any                          `json:"indicators,omitempty"`
}

func newAggregatedData() *AggregatedData {
	return &AggregatedData{
		Klines:     make(map[string][]market.Candle),
		Tickers:    make(map[string]market.Ticker),
		Funding:    make(map[string][]market.FundingRatePoint),
		LongShort:  make(map[string][]market.LongShortRatioPoint),
		WebContent: make(map[string]string),
		Indicators: make(map[string]any),
	}
}

// FetchCounts 取数类结果的成功数与总数，计算类结果不计入。
func (d *AggregatedData) FetchCounts() (success, total int) {
	for _, r := range d.Results {
		if r.SourceType == SourceCalculation {
			continue
		}
		total++
		if r.OK() {
			success++
		}
	}
	return success, total
}

func (d *AggregatedData) HasLivePrice() bool {
	return d.LiveQuote != nil && d.LiveQuote.IsLive
}

func (d *AggregatedData) HasIndicators() bool { return len(d.Indicators) > 0 }

func (d *AggregatedData) HasWebContent() bool { return len(d.WebContent) > 0 }
