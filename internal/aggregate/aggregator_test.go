package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibyl/internal/fallback"
	"sibyl/internal/indicator"
	"sibyl/internal/market"
	"sibyl/internal/plan"
)

type fakeSource struct {
	klines    []market.Candle
	klinesErr error
	ticker    market.Ticker
	tickerErr error
}

func (f *fakeSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return f.klines, f.klinesErr
}

func (f *fakeSource) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	return f.ticker, f.tickerErr
}

func (f *fakeSource) GetFundingHistory(ctx context.Context, symbol string, limit int) ([]market.FundingRatePoint, error) {
	return nil, errors.New("not wired")
}

func (f *fakeSource) GetLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]market.LongShortRatioPoint, error) {
	return nil, errors.New("not wired")
}

type fakeQuoteProvider struct {
	id    string
	price float64
	err   error
}

func (f *fakeQuoteProvider) ID() string { return f.id }

func (f *fakeQuoteProvider) Supports(symbol string) bool { return true }

func (f *fakeQuoteProvider) Ping(ctx context.Context) error { return nil }

func (f *fakeQuoteProvider) GetQuote(ctx context.Context, symbol string) (*market.LiveQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &market.LiveQuote{Symbol: symbol, Price: f.price, ProviderID: f.id, IsLive: true}, nil
}

type fakeSearcher struct {
	failOn string
	calls  []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.calls = append(f.calls, query)
	if query == f.failOn {
		return "", errors.New("search upstream error")
	}
	return "content for " + query, nil
}

func newTestPool(t *testing.T, providers ...market.QuoteProvider) *fallback.Pool {
	t.Helper()
	members := make([]fallback.Member, 0, len(providers))
	for i, p := range providers {
		members = append(members, fallback.Member{Provider: p, Priority: i + 1})
	}
	return fallback.New(context.Background(), time.Second, members...)
}

func risingCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100.0 + float64(i)
		out[i] = market.Candle{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return out
}

func TestTickerFailureTriggersOneCompensatingFetch(t *testing.T) {
	src := &fakeSource{tickerErr: errors.New("retCode 10001")}
	pool := newTestPool(t, &fakeQuoteProvider{id: "binance", price: 64000})
	agg := New(src, pool, nil, 2)

	data := agg.Run(context.Background(), &plan.DataPlan{
		Market: []plan.MarketRequest{{Kind: plan.MarketTicker, Symbol: "BTCUSDT"}},
	})

	var fallbacks, markets int
	for _, r := range data.Results {
		switch r.SourceType {
		case SourceFallback:
			fallbacks++
			assert.Equal(t, StatusSuccess, r.Status)
		case SourceMarket:
			markets++
			assert.Equal(t, StatusFailed, r.Status)
		}
	}
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, 1, markets)
	require.NotNil(t, data.FallbackQuote)
	assert.Equal(t, "binance", data.FallbackQuote.ProviderID)

	// 补偿报价不是计划请求的实时价，不给实时价加分
	assert.Nil(t, data.LiveQuote)
	assert.False(t, data.HasLivePrice())
	assert.Equal(t, 65, Score(data))
}

func TestFailingWebQueryDoesNotBlockOthers(t *testing.T) {
	search := &fakeSearcher{failOn: "first query"}
	agg := New(&fakeSource{}, nil, search, 2)

	data := agg.Run(context.Background(), &plan.DataPlan{
		WebQueries: []string{"first query", "second query"},
	})

	assert.Equal(t, []string{"first query", "second query"}, search.calls)
	require.Len(t, data.Results, 2)
	assert.Equal(t, "content for second query", data.WebContent["second query"])
	success, total := data.FetchCounts()
	assert.Equal(t, 1, success)
	assert.Equal(t, 2, total)
}

func TestIndicatorIsolation(t *testing.T) {
	src := &fakeSource{klines: risingCandles(30)}
	specs, err := indicator.ParseSpecs([]string{"sma_20", "rsi_14", "macd"})
	require.NoError(t, err)
	agg := New(src, nil, nil, 2)

	// 30 根K线不足以算 MACD(12,26,9)，其余指标应照常产出
	data := agg.Run(context.Background(), &plan.DataPlan{
		Market:     []plan.MarketRequest{{Kind: plan.MarketKline, Symbol: "BTCUSDT", Interval: "1h", Limit: 30}},
		Indicators: specs,
	})

	assert.Contains(t, data.Indicators, "SMA_20")
	assert.Contains(t, data.Indicators, "RSI_14")
	assert.NotContains(t, data.Indicators, "MACD_12_26_9")

	var failedCalcs int
	for _, r := range data.Results {
		if r.SourceType == SourceCalculation && r.Status == StatusFailed {
			failedCalcs++
		}
	}
	assert.Equal(t, 1, failedCalcs)
}

func TestSourceResultStatusSerialization(t *testing.T) {
	b, err := json.Marshal(SourceResult{SourceType: SourceMarket, Resource: "ticker:BTCUSDT", Status: StatusSuccess})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"success"`)

	b, err = json.Marshal(SourceResult{SourceType: SourceMarket, Resource: "ticker:BTCUSDT", Status: StatusFailed, Error: "boom"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"failed"`)
}

func TestCasualPlanFetchesNothing(t *testing.T) {
	src := &fakeSource{tickerErr: errors.New("must not be called")}
	agg := New(src, nil, nil, 2)

	data := agg.Run(context.Background(), plan.Casual("hello"))
	assert.Empty(t, data.Results)
}

func TestLivePriceFailureIsRecordedNotFatal(t *testing.T) {
	pool := newTestPool(t, &fakeQuoteProvider{id: "okx", err: errors.New("down")})
	agg := New(&fakeSource{}, pool, nil, 2)

	data := agg.Run(context.Background(), &plan.DataPlan{
		Market:         []plan.MarketRequest{{Kind: plan.MarketTicker, Symbol: "ETHUSDT"}},
		WantsLivePrice: true,
	})

	assert.Nil(t, data.LiveQuote)
	var liveFailed bool
	for _, r := range data.Results {
		if r.SourceType == SourceLivePrice {
			liveFailed = r.Status == StatusFailed
		}
	}
	assert.True(t, liveFailed)
}
