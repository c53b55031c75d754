package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sibyl/internal/fallback"
	"sibyl/internal/gateway/websearch"
	"sibyl/internal/indicator"
	"sibyl/internal/logger"
	"sibyl/internal/market"
	"sibyl/internal/plan"
)

// Aggregator 按计划并发取数。单项失败只记录不上抛，
// 调用方永远拿到一份完整填充的 AggregatedData。
type Aggregator struct {
	source      market.Source
	pool        *fallback.Pool
	search      websearch.Searcher
	concurrency int
	webTimeout  time.Duration
}

func New(source market.Source, pool *fallback.Pool, search websearch.Searcher, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Aggregator{
		source:      source,
		pool:        pool,
		search:      search,
		concurrency: concurrency,
		webTimeout:  8 * time.Second,
	}
}

// Run 执行取数计划。闲聊计划直接返回空结果。
func (a *Aggregator) Run(ctx context.Context, dp *plan.DataPlan) *AggregatedData {
	data := newAggregatedData()
	if dp == nil || dp.IsCasual {
		return data
	}

	var mu sync.Mutex
	record := func(r SourceResult) {
		mu.Lock()
		data.Results = append(data.Results, r)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, req := range dp.Market {
		req := req
		g.Go(func() error {
			a.fetchMarket(gctx, req, data, &mu, record)
			return nil
		})
	}

	if dp.WantsLivePrice {
		symbol := dp.PrimarySymbol()
		g.Go(func() error {
			a.fetchLivePrice(gctx, symbol, data, &mu, record)
			return nil
		})
	}

	if len(dp.WebQueries) > 0 {
		queries := dp.WebQueries
		g.Go(func() error {
			// 查询按计划顺序逐个执行，单条失败不影响后续
			for _, q := range queries {
				a.fetchWeb(gctx, q, data, &mu, record)
			}
			return nil
		})
	}

	// goroutine 内部不返回错误，Wait 只做同步
	_ = g.Wait()

	a.computeIndicators(dp, data, record)
	return data
}

func (a *Aggregator) fetchMarket(ctx context.Context, req plan.MarketRequest, data *AggregatedData, mu *sync.Mutex, record func(SourceResult)) {
	resource := fmt.Sprintf("%s:%s", req.Kind, req.Symbol)
	var err error
	switch req.Kind {
	case plan.MarketKline:
		var candles []market.Candle
		candles, err = a.source.GetKlines(ctx, req.Symbol, req.Interval, req.Limit)
		if err == nil {
			mu.Lock()
			data.Klines[req.Symbol] = candles
			mu.Unlock()
		}
	case plan.MarketTicker:
		var tk market.Ticker
		tk, err = a.source.GetTicker(ctx, req.Symbol)
		if err == nil {
			mu.Lock()
			data.Tickers[req.Symbol] = tk
			mu.Unlock()
		}
	case plan.MarketFunding:
		var points []market.FundingRatePoint
		points, err = a.source.GetFundingHistory(ctx, req.Symbol, req.Limit)
		if err == nil {
			mu.Lock()
			data.Funding[req.Symbol] = points
			mu.Unlock()
		}
	case plan.MarketLongShort:
		var points []market.LongShortRatioPoint
		points, err = a.source.GetLongShortRatio(ctx, req.Symbol, req.Period, req.Limit)
		if err == nil {
			mu.Lock()
			data.LongShort[req.Symbol] = points
			mu.Unlock()
		}
	default:
		err = fmt.Errorf("unsupported market kind %q", req.Kind)
	}

	if err == nil {
		record(SourceResult{SourceType: SourceMarket, Resource: resource, Status: StatusSuccess})
		return
	}
	logger.Warnf("aggregate: %s fetch failed: %v", resource, err)
	record(SourceResult{SourceType: SourceMarket, Resource: resource, Status: StatusFailed, Error: err.Error()})

	// ticker 失败触发一次备援补偿取数，成功与否都单独记一条
	if req.Kind == plan.MarketTicker {
		a.compensate(ctx, req.Symbol, data, mu, record)
	}
}

func (a *Aggregator) compensate(ctx context.Context, symbol string, data *AggregatedData, mu *sync.Mutex, record func(SourceResult)) {
	if a.pool == nil {
		return
	}
	quote, err := a.pool.GetQuote(ctx, symbol)
	if err != nil {
		record(SourceResult{SourceType: SourceFallback, Resource: "quote:" + symbol, Status: StatusFailed, Error: err.Error()})
		return
	}
	// 补偿报价单独存放，不冒充计划请求的实时价
	mu.Lock()
	if data.FallbackQuote == nil {
		data.FallbackQuote = quote
	}
	mu.Unlock()
	record(SourceResult{SourceType: SourceFallback, Resource: "quote:" + symbol, Status: StatusSuccess})
}

func (a *Aggregator) fetchLivePrice(ctx context.Context, symbol string, data *AggregatedData, mu *sync.Mutex, record func(SourceResult)) {
	resource := "quote:" + symbol
	if a.pool == nil || symbol == "" {
		record(SourceResult{SourceType: SourceLivePrice, Resource: resource, Status: StatusFailed, Error: "no live price source"})
		return
	}
	quote, err := a.pool.GetQuote(ctx, symbol)
	if err != nil {
		logger.Warnf("aggregate: live price for %s failed: %v", symbol, err)
		record(SourceResult{SourceType: SourceLivePrice, Resource: resource, Status: StatusFailed, Error: err.Error()})
		return
	}
	mu.Lock()
	data.LiveQuote = quote
	mu.Unlock()
	record(SourceResult{SourceType: SourceLivePrice, Resource: resource, Status: StatusSuccess})
}

func (a *Aggregator) fetchWeb(ctx context.Context, query string, data *AggregatedData, mu *sync.Mutex, record func(SourceResult)) {
	resource := "search:" + query
	if a.search == nil {
		record(SourceResult{SourceType: SourceWeb, Resource: resource, Status: StatusFailed, Error: "no search provider"})
		return
	}
	wctx, cancel := context.WithTimeout(ctx, a.webTimeout)
	defer cancel()
	content, err := a.search.Search(wctx, query)
	if err != nil {
		logger.Warnf("aggregate: web search %q failed: %v", query, err)
		record(SourceResult{SourceType: SourceWeb, Resource: resource, Status: StatusFailed, Error: err.Error()})
		return
	}
	mu.Lock()
	data.WebContent[query] = content
	mu.Unlock()
	record(SourceResult{SourceType: SourceWeb, Resource: resource, Status: StatusSuccess})
}

// computeIndicators 在取数收尾后串行计算，数据不足的指标单独跳过。
func (a *Aggregator) computeIndicators(dp *plan.DataPlan, data *AggregatedData, record func(SourceResult)) {
	if len(dp.Indicators) == 0 {
		return
	}
	candles := a.primaryKlines(dp, data)
	if len(candles) == 0 {
		logger.Warnf("aggregate: indicators requested but no price series available")
		return
	}
	for _, spec := range dp.Indicators {
		value, ok := indicator.Compute(spec, candles)
		if !ok {
			logger.Warnf("aggregate: indicator %s skipped: insufficient data", spec.Name())
			record(SourceResult{SourceType: SourceCalculation, Resource: spec.Name(), Status: StatusFailed, Error: "insufficient data"})
			continue
		}
		data.Indicators[spec.Name()] = value
		record(SourceResult{SourceType: SourceCalculation, Resource: spec.Name(), Status: StatusSuccess})
	}
}

func (a *Aggregator) primaryKlines(dp *plan.DataPlan, data *AggregatedData) []market.Candle {
	if symbol := dp.PrimarySymbol(); symbol != "" {
		if candles, ok := data.Klines[symbol]; ok {
			return candles
		}
	}
	for _, candles := range data.Klines {
		return candles
	}
	return nil
}
