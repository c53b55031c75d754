package binancex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"sibyl/internal/market"
)

// Provider 基于 go-binance 现货客户端的备援报价源。
type Provider struct {
	id     string
	client *gobinance.Client
}

type Config struct {
	ID      string
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) *Provider {
	if cfg.ID == "" {
		cfg.ID = "binance"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := gobinance.NewClient("", "")
	if strings.TrimSpace(cfg.BaseURL) != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Provider{id: cfg.ID, client: client}
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Supports(symbol string) bool {
	_, _, ok := market.SplitPair(symbol)
	return ok
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.client.NewPingService().Do(ctx)
}

func (p *Provider) GetQuote(ctx context.Context, symbol string) (*market.LiveQuote, error) {
	base, quote, ok := market.SplitPair(symbol)
	if !ok {
		return nil, fmt.Errorf("binance: no mapping for %q", symbol)
	}
	pair := base + quote
	prices, err := p.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 || prices[0] == nil {
		return nil, fmt.Errorf("binance: empty price list for %s", pair)
	}
	// 价格是字符串，经 decimal 精确解析后再转 float
	d, err := decimal.NewFromString(strings.TrimSpace(prices[0].Price))
	if err != nil {
		return nil, fmt.Errorf("binance: bad price %q: %w", prices[0].Price, err)
	}
	price, _ := d.Float64()
	return &market.LiveQuote{
		Symbol:     pair,
		Price:      price,
		ProviderID: p.id,
		IsLive:     true,
	}, nil
}
