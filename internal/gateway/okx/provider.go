package okx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"sibyl/internal/market"
)

const defaultBaseURL = "https://www.okx.com"

// Provider OKX 备援报价源；instId 形如 BTC-USDT，信封 code!="0" 视为失败。
type Provider struct {
	id      string
	baseURL string
	httpc   *http.Client
}

type Config struct {
	ID      string
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) *Provider {
	if cfg.ID == "" {
		cfg.ID = "okx"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Provider{
		id:      cfg.ID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Supports(symbol string) bool {
	_, _, ok := market.SplitPair(symbol)
	return ok
}

func (p *Provider) get(ctx context.Context, path string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("okx status=%d", resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	if code := parsed.Get("code").String(); code != "0" {
		return gjson.Result{}, fmt.Errorf("okx code=%s: %s", code, parsed.Get("msg").String())
	}
	return parsed.Get("data"), nil
}

func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.get(ctx, "/api/v5/public/time")
	return err
}

func (p *Provider) GetQuote(ctx context.Context, symbol string) (*market.LiveQuote, error) {
	base, quote, ok := market.SplitPair(symbol)
	if !ok {
		return nil, fmt.Errorf("okx: no mapping for %q", symbol)
	}
	instID := base + "-" + quote
	data, err := p.get(ctx, "/api/v5/market/ticker?instId="+instID)
	if err != nil {
		return nil, err
	}
	rows := data.Array()
	if len(rows) == 0 {
		return nil, fmt.Errorf("okx: empty ticker for %s", instID)
	}
	d, err := decimal.NewFromString(rows[0].Get("last").String())
	if err != nil {
		return nil, fmt.Errorf("okx: bad price: %w", err)
	}
	price, _ := d.Float64()
	return &market.LiveQuote{
		Symbol:     base + quote,
		Price:      price,
		ProviderID: p.id,
		IsLive:     true,
	}, nil
}
