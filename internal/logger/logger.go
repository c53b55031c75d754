package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

// 全局日志出口：等级和底层 handler 均可在运行期热切换
var (
	minLevel slog.LevelVar
	sink     atomic.Pointer[slog.Logger]
)

func init() {
	minLevel.Set(slog.LevelInfo)
	sink.Store(build(os.Stdout))
}

func build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &minLevel}))
}

// SetOutput 重建 handler，指向新的输出目标
func SetOutput(w io.Writer) {
	sink.Store(build(w))
}

// SetLevel 解析等级字符串，认不出的一律按 info 处理
func SetLevel(level string) {
	minLevel.Set(parseLevel(level))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func emit(level slog.Level, format string, v ...any) {
	l := sink.Load()
	if l == nil {
		l = build(os.Stdout)
		sink.Store(l)
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { emit(slog.LevelDebug, format, v...) }

func Infof(format string, v ...any) { emit(slog.LevelInfo, format, v...) }

func Warnf(format string, v ...any) { emit(slog.LevelWarn, format, v...) }

func Errorf(format string, v ...any) { emit(slog.LevelError, format, v...) }
