package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibyl/internal/aggregate"
	"sibyl/internal/market"
	"sibyl/internal/memory"
	"sibyl/internal/plan"
	"sibyl/internal/planner"
)

type memStore struct {
	turns    map[string][]memory.Turn
	longTerm map[string]memory.LongTerm
	upserts  int
}

func newMemStore() *memStore {
	return &memStore{turns: map[string][]memory.Turn{}, longTerm: map[string]memory.LongTerm{}}
}

func (s *memStore) GetRecent(ctx context.Context, chatID string, limit int) ([]memory.Turn, error) {
	turns := s.turns[chatID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *memStore) GetLongTerm(ctx context.Context, chatID string) (memory.LongTerm, error) {
	return s.longTerm[chatID], nil
}

func (s *memStore) GetProfile(ctx context.Context, userID string) (memory.Profile, error) {
	return memory.Profile{}, nil
}

func (s *memStore) AppendTurn(ctx context.Context, chatID string, turn memory.Turn) error {
	s.turns[chatID] = append(s.turns[chatID], turn)
	return nil
}

func (s *memStore) UpsertLongTerm(ctx context.Context, chatID string, update memory.Update) error {
	s.upserts++
	return nil
}

type scriptedOracle struct {
	calls   int
	replies map[string]string
	err     error
	panics  bool
}

func (o *scriptedOracle) ID() string { return "scripted" }

func (o *scriptedOracle) Call(ctx context.Context, purpose, system, user string) (string, error) {
	o.calls++
	if o.panics {
		panic("oracle exploded")
	}
	if o.err != nil {
		return "", o.err
	}
	if reply, ok := o.replies[purpose]; ok {
		return reply, nil
	}
	return "", errors.New("no scripted reply for " + purpose)
}

type staticSource struct {
	ticker    market.Ticker
	tickerErr error
}

func (s *staticSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return nil, errors.New("not scripted")
}

func (s *staticSource) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	return s.ticker, s.tickerErr
}

func (s *staticSource) GetFundingHistory(ctx context.Context, symbol string, limit int) ([]market.FundingRatePoint, error) {
	return nil, errors.New("not scripted")
}

func (s *staticSource) GetLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]market.LongShortRatioPoint, error) {
	return nil, errors.New("not scripted")
}

func newTestEngine(t *testing.T, store memory.Store, o *scriptedOracle, src market.Source) *Engine {
	t.Helper()
	registry, err := plan.NewRegistry("", false)
	require.NoError(t, err)
	p := planner.New(o, registry, time.Second)
	agg := aggregate.New(src, nil, nil, 2)
	return New(memory.NewContextBuilder(store, 10), store, p, agg, o, time.Second)
}

func TestRecallQuotesPreviousQuestion(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.turns["chat-1"] = []memory.Turn{
		{Role: "user", Content: "what's ETH price", Timestamp: now},
		{Role: "assistant", Content: "ETH is around 3200", Timestamp: now},
		{Role: "user", Content: "analyze BTC", Timestamp: now},
		{Role: "assistant", Content: "BTC looks range-bound", Timestamp: now},
	}
	o := &scriptedOracle{replies: map[string]string{}}
	eng := newTestEngine(t, store, o, &staticSource{})

	res := eng.Analyze(context.Background(), Request{Query: "What did I ask just now", ChatID: "chat-1"})
	assert.False(t, res.IsAnalysis)
	assert.Contains(t, res.Response, "what's ETH price")
	assert.NotEmpty(t, res.TraceID)
}

func TestCasualGreetingSkipsOracleAndData(t *testing.T) {
	store := newMemStore()
	o := &scriptedOracle{}
	eng := newTestEngine(t, store, o, &staticSource{tickerErr: errors.New("must not be called")})

	res := eng.Analyze(context.Background(), Request{Query: "hi", ChatID: "chat-2"})
	assert.False(t, res.IsAnalysis)
	assert.NotEmpty(t, res.Response)
	assert.Empty(t, res.DataSources)
	// 规划与总结阶段都不应触发模型调用
	assert.Equal(t, 0, o.calls)
	assert.Len(t, store.turns["chat-2"], 2)
}

func TestDegradedPathStillAnswers(t *testing.T) {
	store := newMemStore()
	o := &scriptedOracle{err: errors.New("oracle offline")}
	src := &staticSource{ticker: market.Ticker{Symbol: "BTCUSDT", LastPrice: 64250}}
	eng := newTestEngine(t, store, o, src)

	res := eng.Analyze(context.Background(), Request{Query: "Bitcoin price?", ChatID: "chat-3"})
	require.True(t, res.IsAnalysis)
	assert.Contains(t, res.Response, "64250")
	assert.NotEmpty(t, res.DataSources)
	assert.GreaterOrEqual(t, res.ConfidenceScore, 50)
	assert.LessOrEqual(t, res.ConfidenceScore, 100)
}

func TestMemoryUpdateEmitted(t *testing.T) {
	store := newMemStore()
	o := &scriptedOracle{replies: map[string]string{
		"plan":      `{"is_casual": false, "required_data": {"market":[{"kind":"ticker","symbol":"BTCUSDT"}]}}`,
		"summarize": "BTC trades at 64250.",
		"memory":    `{"summary": "User tracks BTC spot price.", "facts": ["interested in BTCUSDT"], "tags": ["btc"]}`,
	}}
	src := &staticSource{ticker: market.Ticker{Symbol: "BTCUSDT", LastPrice: 64250}}
	eng := newTestEngine(t, store, o, src)

	res := eng.Analyze(context.Background(), Request{Query: "how is bitcoin doing", ChatID: "chat-4"})
	assert.True(t, res.IsAnalysis)
	assert.Equal(t, "BTC trades at 64250.", res.Response)
	assert.Equal(t, 1, store.upserts)
	assert.Len(t, store.turns["chat-4"], 2)
}

func TestPanicConvertedToLowConfidenceResponse(t *testing.T) {
	store := newMemStore()
	o := &scriptedOracle{panics: true}
	eng := newTestEngine(t, store, o, &staticSource{})

	var res Result
	assert.NotPanics(t, func() {
		res = eng.Analyze(context.Background(), Request{Query: "analyze eth now", ChatID: "chat-5"})
	})
	assert.False(t, res.IsAnalysis)
	assert.NotEmpty(t, res.Response)
	assert.Equal(t, 0, res.ConfidenceScore)
}
