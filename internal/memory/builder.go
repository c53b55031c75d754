package memory

import (
	"context"

	"sibyl/internal/logger"
)

// ContextBuilder 为单次请求组装只读会话上下文。
// 存储读失败只降级为空上下文对应部分，不向上抛。
type ContextBuilder struct {
	store       Store
	recentLimit int
}

func NewContextBuilder(store Store, recentLimit int) *ContextBuilder {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &ContextBuilder{store: store, recentLimit: recentLimit}
}

func (b *ContextBuilder) Build(ctx context.Context, chatID, userID string) Context {
	out := Context{}
	if b.store == nil || chatID == "" {
		return out
	}
	turns, err := b.store.GetRecent(ctx, chatID, b.recentLimit)
	if err != nil {
		logger.Warnf("memory: load recent turns failed: %v", err)
	} else {
		out.RecentTurns = turns
	}
	longTerm, err := b.store.GetLongTerm(ctx, chatID)
	if err != nil {
		logger.Warnf("memory: load long-term failed: %v", err)
	} else {
		out.LongTermSummary = longTerm.Summary
		out.LongTermFacts = longTerm.Facts
		out.LongTermTags = longTerm.Tags
	}
	if userID != "" {
		profile, err := b.store.GetProfile(ctx, userID)
		if err != nil {
			logger.Warnf("memory: load profile failed: %v", err)
		} else {
			out.Profile = profile
		}
	}
	return out
}
