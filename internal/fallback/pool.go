package fallback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sibyl/internal/logger"
	"sibyl/internal/market"
)

// 中文说明：
// 备援报价池：初始化时对每个交易所做一次有超时的连通性探测，
// 此后激活状态不随请求变化；重新探测是显式操作（Reprobe）。
// 取数按优先级升序逐个尝试，第一个拿到报价的交易所胜出，不做合并。

// ErrExhausted 所有激活的交易所都取数失败（或没有可用交易所）。
// 调用方应把它记为一次失败的取数，而不是致命错误。
var ErrExhausted = errors.New("fallback pool exhausted")

type Member struct {
	Provider market.QuoteProvider
	Priority int
}

type ProviderRecord struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	IsActive bool   `json:"is_active"`
}

type entry struct {
	provider market.QuoteProvider
	priority int
	active   bool
}

type Pool struct {
	probeTimeout time.Duration

	mu      sync.RWMutex
	entries []entry
}

// New 构建池并立即探测全部成员。探测失败只会把成员标记为 inactive。
func New(ctx context.Context, probeTimeout time.Duration, members ...Member) *Pool {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	p := &Pool{probeTimeout: probeTimeout}
	for _, m := range members {
		if m.Provider == nil {
			continue
		}
		p.entries = append(p.entries, entry{provider: m.Provider, priority: m.Priority})
	}
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].priority < p.entries[j].priority
	})
	p.Reprobe(ctx)
	return p
}

// Reprobe 重新探测全部成员的可达性。
func (p *Pool) Reprobe(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		e := &p.entries[i]
		probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
		err := e.provider.Ping(probeCtx)
		cancel()
		e.active = err == nil
		if err != nil {
			logger.Warnf("fallback provider %s inactive: %v", e.provider.ID(), err)
		} else {
			logger.Infof("fallback provider %s active (priority=%d)", e.provider.ID(), e.priority)
		}
	}
}

// GetQuote 按优先级升序尝试激活的交易所；没有交易对映射的直接跳过。
func (p *Pool) GetQuote(ctx context.Context, symbol string) (*market.LiveQuote, error) {
	p.mu.RLock()
	entries := make([]entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.RUnlock()

	var lastErr error
	for _, e := range entries {
		if !e.active {
			continue
		}
		if !e.provider.Supports(symbol) {
			continue
		}
		quote, err := e.provider.GetQuote(ctx, symbol)
		if err != nil {
			lastErr = err
			logger.Debugf("fallback %s failed for %s: %v", e.provider.ID(), symbol, err)
			continue
		}
		if quote != nil {
			return quote, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
	}
	return nil, ErrExhausted
}

// Records 当前池状态快照，用于展示。
func (p *Pool) Records() []ProviderRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ProviderRecord, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, ProviderRecord{
			ID:       e.provider.ID(),
			Priority: e.priority,
			IsActive: e.active,
		})
	}
	return out
}
