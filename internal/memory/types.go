package memory

import (
	"context"
	"time"
)

type Turn struct {
	Role      string    `json:"role"` // user / assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type LongTerm struct {
	Summary string   `json:"summary"`
	Facts   []string `json:"facts"`
	Tags    []string `json:"tags"`
}

type Profile struct {
	ExperienceLevel string            `json:"experience_level"`
	Preferences     map[string]string `json:"preferences"`
}

// Context 单次请求的会话上下文，构建后只读。
type Context struct {
	RecentTurns     []Turn
	LongTermSummary string
	LongTermFacts   []string
	LongTermTags    []string
	Profile         Profile
}

// UserTurns 按时间升序返回用户角色的轮次。
func (c Context) UserTurns() []Turn {
	out := make([]Turn, 0, len(c.RecentTurns))
	for _, t := range c.RecentTurns {
		if t.Role == "user" {
			out = append(out, t)
		}
	}
	return out
}

// Update 编排器在总结阶段之后产出的记忆更新指令；落库由存储方负责。
type Update struct {
	Summary string   `json:"summary"`
	Facts   []string `json:"facts"`
	Tags    []string `json:"tags"`
}

// Store 外部记忆存储契约。
type Store interface {
	GetRecent(ctx context.Context, chatID string, limit int) ([]Turn, error)
	GetLongTerm(ctx context.Context, chatID string) (LongTerm, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
	AppendTurn(ctx context.Context, chatID string, turn Turn) error
	UpsertLongTerm(ctx context.Context, chatID string, update Update) error
}
