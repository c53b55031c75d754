package plan

import (
	"sibyl/internal/indicator"
)

type MarketKind string

const (
	MarketKline     MarketKind = "kline"
	MarketTicker    MarketKind = "ticker"
	MarketFunding   MarketKind = "funding"
	MarketLongShort MarketKind = "long_short_ratio"
)

// MarketRequest 一次主行情取数请求。
type MarketRequest struct {
	Kind     MarketKind `json:"kind"`
	Symbol   string     `json:"symbol"`
	Interval string     `json:"interval,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Period   string     `json:"period,omitempty"` // 多空比专用
}

// DataPlan 规划结果。IsCasual 为 true 时数据字段一律被忽略。
type DataPlan struct {
	IsCasual       bool             `json:"is_casual"`
	CasualResponse string           `json:"casual_response,omitempty"`
	Market         []MarketRequest  `json:"market,omitempty"`
	WantsLivePrice bool             `json:"wants_live_price,omitempty"`
	WebQueries     []string         `json:"web_queries,omitempty"`
	Indicators     []indicator.Spec `json:"-"`
}

// Casual 构造闲聊直答计划。
func Casual(response string) *DataPlan {
	return &DataPlan{IsCasual: true, CasualResponse: response}
}

// PrimarySymbol 计划里第一个行情请求的交易对，用于实时价与备援取数。
func (p *DataPlan) PrimarySymbol() string {
	for _, m := range p.Market {
		if m.Symbol != "" {
			return m.Symbol
		}
	}
	return ""
}

// HasWork 是否存在任何待执行的取数/计算。
func (p *DataPlan) HasWork() bool {
	return len(p.Market) > 0 || p.WantsLivePrice || len(p.WebQueries) > 0 || len(p.Indicators) > 0
}
