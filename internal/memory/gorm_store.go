package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 中文说明：
// Gorm + SQLite 的记忆存储实现。短期记忆按轮次落表，长期记忆一行一个
// 会话（facts/tags 存 JSON 列），用户画像单独一张表。

type turnModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ChatID    string `gorm:"index:idx_turn_chat;size:64"`
	Role      string `gorm:"size:16"`
	Content   string
	CreatedAt time.Time `gorm:"index:idx_turn_chat"`
}

func (turnModel) TableName() string { return "memory_turns" }

type longTermModel struct {
	ChatID    string `gorm:"primaryKey;size:64"`
	Summary   string
	Facts     datatypes.JSON
	Tags      datatypes.JSON
	UpdatedAt time.Time
}

func (longTermModel) TableName() string { return "memory_long_term" }

type profileModel struct {
	UserID          string `gorm:"primaryKey;size:64"`
	ExperienceLevel string `gorm:"size:32"`
	Preferences     datatypes.JSON
	UpdatedAt       time.Time
}

func (profileModel) TableName() string { return "memory_profiles" }

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("memory store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&turnModel{}, &longTermModel{}, &profileModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetRecent(ctx context.Context, chatID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []turnModel
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	// 查询按最新在前，翻转成时间升序
	out := make([]Turn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, Turn{
			Role:      rows[i].Role,
			Content:   rows[i].Content,
			Timestamp: rows[i].CreatedAt,
		})
	}
	return out, nil
}

func (s *GormStore) GetLongTerm(ctx context.Context, chatID string) (LongTerm, error) {
	var row longTermModel
	err := s.db.WithContext(ctx).First(&row, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LongTerm{}, nil
	}
	if err != nil {
		return LongTerm{}, err
	}
	return LongTerm{
		Summary: row.Summary,
		Facts:   decodeStrings(row.Facts),
		Tags:    decodeStrings(row.Tags),
	}, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, nil
	}
	var row profileModel
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	prefs := map[string]string{}
	if len(row.Preferences) > 0 {
		_ = json.Unmarshal(row.Preferences, &prefs)
	}
	return Profile{ExperienceLevel: row.ExperienceLevel, Preferences: prefs}, nil
}

func (s *GormStore) AppendTurn(ctx context.Context, chatID string, turn Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(&turnModel{
		ChatID:    chatID,
		Role:      turn.Role,
		Content:   turn.Content,
		CreatedAt: turn.Timestamp,
	}).Error
}

func (s *GormStore) UpsertLongTerm(ctx context.Context, chatID string, update Update) error {
	existing, err := s.GetLongTerm(ctx, chatID)
	if err != nil {
		return err
	}
	summary := existing.Summary
	if strings.TrimSpace(update.Summary) != "" {
		summary = update.Summary
	}
	facts := mergeUnique(existing.Facts, update.Facts)
	tags := mergeUnique(existing.Tags, update.Tags)
	row := longTermModel{
		ChatID:    chatID,
		Summary:   summary,
		Facts:     encodeStrings(facts),
		Tags:      encodeStrings(tags),
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeStrings(values []string) datatypes.JSON {
	b, _ := json.Marshal(values)
	return b
}

func mergeUnique(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, group := range [][]string{existing, added} {
		for _, v := range group {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
