package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sibyl/internal/aggregate"
	"sibyl/internal/gateway/oracle"
	"sibyl/internal/logger"
	"sibyl/internal/memory"
	"sibyl/internal/planner"
)

const summarySystemPrompt = `You are a crypto market analyst. Using only the data provided,
answer the user's question concisely. Mention concrete numbers when present. If some data
sources failed, say what is missing instead of guessing.`

// Request 一次分析请求。ChatID 为空时不读写记忆。
type Request struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Result 编排器唯一的出口结构。闲聊回合 DataSources 与分数为零值。
type Result struct {
	TraceID         string                   `json:"trace_id"`
	IsAnalysis      bool                     `json:"is_analysis"`
	Response        string                   `json:"response"`
	DataSources     []aggregate.SourceResult `json:"data_sources,omitempty"`
	ConfidenceScore int                      `json:"confidence_score,omitempty"`
}

// Engine 顶层编排：记忆上下文 → 规划 → 聚合取数 → 置信分 → 总结。
// 任何阶段的意外 panic 都在这里收口成低置信回复。
type Engine struct {
	builder    *memory.ContextBuilder
	store      memory.Store
	planner    *planner.Planner
	aggregator *aggregate.Aggregator
	summarizer oracle.Provider
	timeout    time.Duration
}

func New(builder *memory.ContextBuilder, store memory.Store, p *planner.Planner, agg *aggregate.Aggregator, summarizer oracle.Provider, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		builder:    builder,
		store:      store,
		planner:    p,
		aggregator: agg,
		summarizer: summarizer,
		timeout:    timeout,
	}
}

func (e *Engine) Analyze(ctx context.Context, req Request) (result Result) {
	result.TraceID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("engine: panic recovered trace=%s: %v", result.TraceID, r)
			result.IsAnalysis = false
			result.Response = "Something went wrong while processing your question. Please try again."
			result.ConfidenceScore = 0
			result.DataSources = nil
		}
	}()

	query := strings.TrimSpace(req.Query)
	memCtx := e.builder.Build(ctx, req.ChatID, req.UserID)

	dp := e.planner.Plan(ctx, query, memCtx)
	if dp.IsCasual {
		result.IsAnalysis = false
		result.Response = dp.CasualResponse
		e.remember(ctx, req, query, result.Response, memCtx, nil)
		return result
	}

	data := e.aggregator.Run(ctx, dp)
	result.IsAnalysis = true
	result.DataSources = data.Results
	result.ConfidenceScore = aggregate.Score(data)
	result.Response = e.summarize(ctx, query, memCtx, data)

	e.remember(ctx, req, query, result.Response, memCtx, data)
	return result
}

// summarize 把聚合数据交给总结模型，失败时退回确定性数据摘要。
func (e *Engine) summarize(ctx context.Context, query string, memCtx memory.Context, data *aggregate.AggregatedData) string {
	digest := dataDigest(data)
	if e.summarizer == nil {
		return digest
	}
	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nAggregated data:\n")
	b.WriteString(digest)
	if memCtx.LongTermSummary != "" {
		b.WriteString("\nConversation summary: ")
		b.WriteString(memCtx.LongTermSummary)
	}

	text, err := e.summarizer.Call(sctx, "summarize", summarySystemPrompt, b.String())
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warnf("engine: summarization failed, returning data digest: %v", err)
		return digest
	}
	return strings.TrimSpace(text)
}

// dataDigest 无模型可用时的兜底回复，逐段列出拿到的数据。
func dataDigest(data *aggregate.AggregatedData) string {
	var parts []string
	if data.LiveQuote != nil && data.LiveQuote.IsLive {
		parts = append(parts, fmt.Sprintf("%s live price: %.6g (via %s)", data.LiveQuote.Symbol, data.LiveQuote.Price, data.LiveQuote.ProviderID))
	}
	if data.FallbackQuote != nil {
		parts = append(parts, fmt.Sprintf("%s fallback quote: %.6g (via %s)", data.FallbackQuote.Symbol, data.FallbackQuote.Price, data.FallbackQuote.ProviderID))
	}
	for symbol, tk := range data.Tickers {
		parts = append(parts, fmt.Sprintf("%s last price: %.6g (24h change %.2f%%)", symbol, tk.LastPrice, tk.Change24h*100))
	}
	for symbol, candles := range data.Klines {
		if len(candles) > 0 {
			last := candles[len(candles)-1]
			parts = append(parts, fmt.Sprintf("%s latest close: %.6g over %d candles", symbol, last.Close, len(candles)))
		}
	}
	if len(data.Indicators) > 0 {
		names := make([]string, 0, len(data.Indicators))
		for name := range data.Indicators {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s = %s", name, formatIndicator(data.Indicators[name])))
		}
	}
	for query, content := range data.WebContent {
		if len(content) > 240 {
			content = content[:240] + "..."
		}
		parts = append(parts, fmt.Sprintf("web %q: %s", query, content))
	}
	if len(parts) == 0 {
		return "No data source responded for this question. Please try again later."
	}
	return strings.Join(parts, "\n")
}

func formatIndicator(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", x)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
