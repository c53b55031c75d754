package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibyl/internal/aggregate"
	"sibyl/internal/engine"
	"sibyl/internal/market"
	"sibyl/internal/memory"
	"sibyl/internal/plan"
	"sibyl/internal/planner"
)

type stubSource struct{}

func (stubSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return nil, errors.New("offline")
}

func (stubSource) GetTicker(ctx context.Context, symbol string) (market.Ticker, error) {
	return market.Ticker{Symbol: symbol, LastPrice: 100}, nil
}

func (stubSource) GetFundingHistory(ctx context.Context, symbol string, limit int) ([]market.FundingRatePoint, error) {
	return nil, errors.New("offline")
}

func (stubSource) GetLongShortRatio(ctx context.Context, symbol, period string, limit int) ([]market.LongShortRatioPoint, error) {
	return nil, errors.New("offline")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry, err := plan.NewRegistry("", false)
	require.NoError(t, err)
	p := planner.New(nil, registry, time.Second)
	agg := aggregate.New(stubSource{}, nil, nil, 2)
	eng := engine.New(memory.NewContextBuilder(nil, 10), nil, p, agg, nil, time.Second)

	s, err := NewServer(Config{Addr: ":0", Engine: eng, Rulebook: registry})
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestAnalyzeRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeReturnsResult(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"query":"btc price"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trace_id")
	assert.Contains(t, rec.Body.String(), "is_analysis")
}

func TestRulebookDump(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rulebook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "casual_phrases")
}
