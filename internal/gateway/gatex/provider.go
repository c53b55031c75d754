package gatex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
	"github.com/shopspring/decimal"

	"sibyl/internal/market"
)

const defaultBasePath = "https://api.gateio.ws/api/v4"

// Provider Gate 现货备援报价源；交易对格式形如 BTC_USDT。
type Provider struct {
	id   string
	rest *gateapi.APIClient
}

type Config struct {
	ID      string
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) *Provider {
	if cfg.ID == "" {
		cfg.ID = "gate"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	conf := gateapi.NewConfiguration()
	conf.BasePath = strings.TrimSpace(cfg.BaseURL)
	if conf.BasePath == "" {
		conf.BasePath = defaultBasePath
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Provider{id: cfg.ID, rest: gateapi.NewAPIClient(conf)}
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Supports(symbol string) bool {
	_, _, ok := market.SplitPair(symbol)
	return ok
}

func (p *Provider) pair(symbol string) (string, error) {
	base, quote, ok := market.SplitPair(symbol)
	if !ok {
		return "", fmt.Errorf("gate: no mapping for %q", symbol)
	}
	return base + "_" + quote, nil
}

func (p *Provider) Ping(ctx context.Context) error {
	_, _, err := p.rest.SpotApi.GetCurrencyPair(ctx, "BTC_USDT")
	return err
}

func (p *Provider) GetQuote(ctx context.Context, symbol string) (*market.LiveQuote, error) {
	pair, err := p.pair(symbol)
	if err != nil {
		return nil, err
	}
	tickers, _, err := p.rest.SpotApi.ListTickers(ctx, &gateapi.ListTickersOpts{
		CurrencyPair: optional.NewString(pair),
	})
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("gate: empty ticker list for %s", pair)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(tickers[0].Last))
	if err != nil {
		return nil, fmt.Errorf("gate: bad price %q: %w", tickers[0].Last, err)
	}
	price, _ := d.Float64()
	return &market.LiveQuote{
		Symbol:     strings.ReplaceAll(pair, "_", ""),
		Price:      price,
		ProviderID: p.id,
		IsLive:     true,
	}, nil
}
