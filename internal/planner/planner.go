package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sibyl/internal/gateway/oracle"
	"sibyl/internal/indicator"
	"sibyl/internal/logger"
	"sibyl/internal/memory"
	"sibyl/internal/plan"
)

const planSystemPrompt = `You are the data planner of a market analysis engine.
Given the user's question and conversation context, decide what data is needed.
Respond with a single JSON object and nothing else:
{
  "is_casual": bool,            // true when the question needs no market data
  "response": "...",            // required when is_casual is true
  "required_data": {            // required when is_casual is false
    "market": [{"kind":"kline|ticker|funding|long_short_ratio","symbol":"BTCUSDT","interval":"1h","limit":200,"period":"1h"}],
    "live_price": bool,
    "web_search": ["query", ...],
    "indicators": ["rsi_14","macd","sma_20","ema_20","vwap","bollinger_20","hma_9","atr_14"]
  }
}
Symbols must be exchange pairs like BTCUSDT. Only use indicator names from the list above.
Do not wrap the JSON in markdown fences.`

// Planner 把自然语言问题转成取数计划。模型不可用或输出不合规时
// 退回确定性的词表规划，绝不把失败抛给上层。
type Planner struct {
	provider oracle.Provider
	registry *plan.Registry
	timeout  time.Duration
}

func New(provider oracle.Provider, registry *plan.Registry, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Planner{provider: provider, registry: registry, timeout: timeout}
}

// Plan 规划入口。回忆类与闲聊类问题直接短路，不触发模型调用。
func (p *Planner) Plan(ctx context.Context, query string, memCtx memory.Context) *plan.DataPlan {
	rb := p.registry.Snapshot()
	trimmed := strings.TrimSpace(query)

	if rb.IsRecallPhrase(trimmed) {
		return plan.Casual(recallAnswer(memCtx))
	}
	if rb.IsCasualPhrase(trimmed) && len(memCtx.RecentTurns) == 0 {
		return plan.Casual("Hello! Ask me about a crypto pair and I will pull the data and take a look.")
	}

	if p.provider == nil {
		return p.fallback(trimmed, rb)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.provider.Call(callCtx, "plan", planSystemPrompt, buildUserPrompt(trimmed, memCtx))
	if err != nil {
		logger.Warnf("planner: oracle call failed, using rulebook fallback: %v", err)
		return p.fallback(trimmed, rb)
	}
	dp, err := plan.ParseOracleOutput(raw)
	if err != nil {
		logger.Warnf("planner: oracle plan rejected, using rulebook fallback: %v", err)
		return p.fallback(trimmed, rb)
	}
	return dp
}

// recallAnswer 回答“我刚才问了什么”：取倒数第二条用户轮次。
func recallAnswer(memCtx memory.Context) string {
	turns := memCtx.UserTurns()
	if len(turns) < 2 {
		return "I don't have a previous question from you in this conversation yet."
	}
	return fmt.Sprintf("You asked: \"%s\"", turns[len(turns)-2].Content)
}

func buildUserPrompt(query string, memCtx memory.Context) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n")
	if len(memCtx.RecentTurns) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range memCtx.RecentTurns {
			b.WriteString(t.Role)
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}
	if memCtx.LongTermSummary != "" {
		b.WriteString("\nConversation summary: ")
		b.WriteString(memCtx.LongTermSummary)
		b.WriteString("\n")
	}
	if len(memCtx.LongTermFacts) > 0 {
		facts, _ := json.Marshal(memCtx.LongTermFacts)
		b.WriteString("Known facts: ")
		b.Write(facts)
		b.WriteString("\n")
	}
	if memCtx.Profile.ExperienceLevel != "" {
		b.WriteString("User experience level: ")
		b.WriteString(memCtx.Profile.ExperienceLevel)
		b.WriteString("\n")
	}
	return b.String()
}

// fallback 确定性规划三分支：分析意图 → K线+指标，价格意图 → ticker+实时价，
// 其余（含识别不出币种的）一律交给网页搜索。
func (p *Planner) fallback(query string, rb plan.Rulebook) *plan.DataPlan {
	lower := strings.ToLower(query)
	if symbol, ok := rb.SymbolFor(lower); ok {
		switch {
		case rb.WantsAnalysis(lower):
			specs, err := indicator.ParseSpecs(rb.DefaultIndicators)
			if err != nil {
				logger.Warnf("planner: bad default indicators in rulebook: %v", err)
				specs = nil
			}
			return &plan.DataPlan{
				Market: []plan.MarketRequest{{
					Kind:     plan.MarketKline,
					Symbol:   symbol,
					Interval: rb.DefaultInterval,
					Limit:    rb.DefaultLimit,
				}},
				Indicators:     specs,
				WantsLivePrice: true,
			}
		case rb.WantsPrice(lower):
			return &plan.DataPlan{
				Market:         []plan.MarketRequest{{Kind: plan.MarketTicker, Symbol: symbol}},
				WantsLivePrice: true,
			}
		}
	}
	return &plan.DataPlan{WebQueries: []string{query}}
}
