package bybit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"sibyl/internal/logger"
	"sibyl/internal/market"
)

// 中文说明：
// Bybit v5 公共行情客户端，实现 market.Source。
// v5 所有接口共用 retCode/retMsg 信封，retCode!=0 一律按失败处理。

const (
	defaultBaseURL = "https://api.bybit.com"
	maxKlineLimit  = 1000
)

type Config struct {
	BaseURL  string
	Category string
	Timeout  time.Duration
}

type Client struct {
	cfg   Config
	httpc *http.Client
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Category == "" {
		cfg.Category = "linear"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (gjson.Result, error) {
	endpoint := c.cfg.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("bybit status=%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("bybit returned invalid json")
	}
	parsed := gjson.ParseBytes(body)
	if code := parsed.Get("retCode").Int(); code != 0 {
		return gjson.Result{}, fmt.Errorf("bybit retCode=%d: %s", code, parsed.Get("retMsg").String())
	}
	return parsed.Get("result"), nil
}

func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	apiInterval, intervalMs, err := mapInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	q.Set("interval", apiInterval)
	q.Set("limit", fmt.Sprintf("%d", limit))
	result, err := c.get(ctx, "/v5/market/kline", q)
	if err != nil {
		return nil, err
	}
	rows := result.Get("list").Array()
	// Bybit 返回最新在前，这里翻转成最旧在前。
	out := make([]market.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		cols := rows[i].Array()
		if len(cols) < 7 {
			continue
		}
		openTime := cols[0].Int()
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + intervalMs - 1,
			Open:      cols[1].Float(),
			High:      cols[2].Float(),
			Low:       cols[3].Float(),
			Close:     cols[4].Float(),
			Volume:    cols[5].Float(),
			Turnover:  cols[6].Float(),
		})
	}
	logger.Debugf("bybit kline %s %s -> %d candles", symbol, interval, len(out))
	return out, nil
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Ticker{}, fmt.Errorf("symbol is required")
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	result, err := c.get(ctx, "/v5/market/tickers", q)
	if err != nil {
		return market.Ticker{}, err
	}
	rows := result.Get("list").Array()
	if len(rows) == 0 {
		return market.Ticker{}, fmt.Errorf("bybit ticker %s: empty list", symbol)
	}
	row := rows[0]
	return market.Ticker{
		Symbol:    row.Get("symbol").String(),
		LastPrice: row.Get("lastPrice").Float(),
		Bid:       row.Get("bid1Price").Float(),
		Ask:       row.Get("ask1Price").Float(),
		High24h:   row.Get("highPrice24h").Float(),
		Low24h:    row.Get("lowPrice24h").Float(),
		Change24h: row.Get("price24hPcnt").Float(),
		Volume24h: row.Get("volume24h").Float(),
	}, nil
}

func (c *Client) GetFundingHistory(ctx context.Context, symbol string, limit int) ([]market.FundingRatePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	q.Set("limit", fmt.Sprintf("%d", limit))
	result, err := c.get(ctx, "/v5/market/funding/history", q)
	if err != nil {
		return nil, err
	}
	rows := result.Get("list").Array()
	out := make([]market.FundingRatePoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, market.FundingRatePoint{
			Symbol:      row.Get("symbol").String(),
			FundingRate: row.Get("fundingRate").Float(),
			Timestamp:   row.Get("fundingRateTimestamp").Int(),
		})
	}
	return out, nil
}

func (c *Client) GetLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]market.LongShortRatioPoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if period == "" {
		period = "1h"
	}
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("category", c.cfg.Category)
	q.Set("symbol", symbol)
	q.Set("period", period)
	q.Set("limit", fmt.Sprintf("%d", limit))
	result, err := c.get(ctx, "/v5/market/account-ratio", q)
	if err != nil {
		return nil, err
	}
	rows := result.Get("list").Array()
	out := make([]market.LongShortRatioPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, market.LongShortRatioPoint{
			Symbol:    row.Get("symbol").String(),
			BuyRatio:  row.Get("buyRatio").Float(),
			SellRatio: row.Get("sellRatio").Float(),
			Timestamp: row.Get("timestamp").Int(),
		})
	}
	return out, nil
}

func mapInterval(interval string) (string, int64, error) {
	iv := strings.ToLower(strings.TrimSpace(interval))
	if iv == "" {
		iv = "1h"
	}
	const minuteMs = int64(60 * 1000)
	switch iv {
	case "1m":
		return "1", minuteMs, nil
	case "3m":
		return "3", 3 * minuteMs, nil
	case "5m":
		return "5", 5 * minuteMs, nil
	case "15m":
		return "15", 15 * minuteMs, nil
	case "30m":
		return "30", 30 * minuteMs, nil
	case "1h":
		return "60", 60 * minuteMs, nil
	case "2h":
		return "120", 120 * minuteMs, nil
	case "4h":
		return "240", 240 * minuteMs, nil
	case "6h":
		return "360", 360 * minuteMs, nil
	case "12h":
		return "720", 720 * minuteMs, nil
	case "1d", "d":
		return "D", 24 * 60 * minuteMs, nil
	case "1w", "w":
		return "W", 7 * 24 * 60 * minuteMs, nil
	}
	return "", 0, fmt.Errorf("unsupported interval %q", interval)
}
