package engine

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"sibyl/internal/aggregate"
	"sibyl/internal/logger"
	"sibyl/internal/memory"
)

const memorySystemPrompt = `Summarize the conversation state for long-term memory.
Respond with a single JSON object: {"summary": "...", "facts": ["..."], "tags": ["..."]}.
Facts are durable statements about the user's interests (symbols, topics). Keep both lists short.`

// remember 回合落库与长期记忆更新。所有失败只打日志，不影响已产出的回复。
func (e *Engine) remember(ctx context.Context, req Request, query, response string, memCtx memory.Context, data *aggregate.AggregatedData) {
	if e.store == nil || req.ChatID == "" {
		return
	}
	now := time.Now()
	if err := e.store.AppendTurn(ctx, req.ChatID, memory.Turn{Role: "user", Content: query, Timestamp: now}); err != nil {
		logger.Warnf("engine: append user turn failed: %v", err)
	}
	if err := e.store.AppendTurn(ctx, req.ChatID, memory.Turn{Role: "assistant", Content: response, Timestamp: now}); err != nil {
		logger.Warnf("engine: append assistant turn failed: %v", err)
	}

	// 闲聊回合只落轮次，不做长期记忆抽取
	if data == nil {
		return
	}
	update := e.buildMemoryUpdate(ctx, query, response, memCtx)
	if update.Summary == "" && len(update.Facts) == 0 && len(update.Tags) == 0 {
		return
	}
	if err := e.store.UpsertLongTerm(ctx, req.ChatID, update); err != nil {
		logger.Warnf("engine: upsert long-term memory failed: %v", err)
	}
}

// buildMemoryUpdate 让总结模型抽取摘要与事实，任何失败降级为空更新。
func (e *Engine) buildMemoryUpdate(ctx context.Context, query, response string, memCtx memory.Context) memory.Update {
	if e.summarizer == nil {
		return memory.Update{}
	}
	mctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var b strings.Builder
	if memCtx.LongTermSummary != "" {
		b.WriteString("Previous summary: ")
		b.WriteString(memCtx.LongTermSummary)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(query)
	b.WriteString("\nassistant: ")
	b.WriteString(response)

	raw, err := e.summarizer.Call(mctx, "memory", memorySystemPrompt, b.String())
	if err != nil {
		logger.Warnf("engine: memory extraction failed: %v", err)
		return memory.Update{}
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		if idx := strings.Index(raw, "{"); idx >= 0 {
			parsed = gjson.Parse(raw[idx:])
		}
	}
	if !parsed.IsObject() {
		logger.Warnf("engine: memory extraction returned no JSON object")
		return memory.Update{}
	}
	update := memory.Update{Summary: parsed.Get("summary").String()}
	for _, f := range parsed.Get("facts").Array() {
		if s := strings.TrimSpace(f.String()); s != "" {
			update.Facts = append(update.Facts, s)
		}
	}
	for _, tg := range parsed.Get("tags").Array() {
		if s := strings.TrimSpace(tg.String()); s != "" {
			update.Tags = append(update.Tags, s)
		}
	}
	return update
}
