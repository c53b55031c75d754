package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// 中文说明：
// 指标以封闭枚举表示：每个变体携带类型化参数，未知名称在
// 计划校验阶段就被拒绝，而不是等到计算阶段才告警。

type Kind int

const (
	KindSMA Kind = iota + 1
	KindEMA
	KindRSI
	KindMACD
	KindVWAP
	KindBollinger
	KindHMA
	KindATR
)

func (k Kind) String() string {
	switch k {
	case KindSMA:
		return "SMA"
	case KindEMA:
		return "EMA"
	case KindRSI:
		return "RSI"
	case KindMACD:
		return "MACD"
	case KindVWAP:
		return "VWAP"
	case KindBollinger:
		return "BOLLINGER"
	case KindHMA:
		return "HMA"
	case KindATR:
		return "ATR"
	default:
		return "UNKNOWN"
	}
}

// Spec 单个指标请求：Kind + 类型化参数。
type Spec struct {
	Kind   Kind
	Period int
	// MACD 专用
	Fast   int
	Slow   int
	Signal int
	// Bollinger 专用
	Mult float64
}

// Name 规范化显示名，用于聚合结果里的 map key。
func (s Spec) Name() string {
	switch s.Kind {
	case KindMACD:
		return fmt.Sprintf("MACD_%d_%d_%d", s.Fast, s.Slow, s.Signal)
	case KindVWAP:
		return "VWAP"
	case KindBollinger:
		return fmt.Sprintf("BOLLINGER_%d", s.Period)
	default:
		return fmt.Sprintf("%s_%d", s.Kind, s.Period)
	}
}

// ParseSpec 解析诸如 "rsi"、"rsi_14"、"sma_20"、"macd"、"bollinger_20"
// 的指标名。未知名称返回错误，不会静默忽略。
func ParseSpec(name string) (Spec, error) {
	raw := strings.ToLower(strings.TrimSpace(name))
	if raw == "" {
		return Spec{}, fmt.Errorf("indicator name is empty")
	}
	base := raw
	period := 0
	if idx := strings.IndexAny(raw, "_-"); idx > 0 {
		base = raw[:idx]
		if p, err := strconv.Atoi(raw[idx+1:]); err == nil && p > 0 {
			period = p
		}
	} else {
		// 兼容 "rsi14"、"sma20" 这类紧凑写法
		trimmed := strings.TrimRight(raw, "0123456789")
		if trimmed != raw && trimmed != "" {
			if p, err := strconv.Atoi(raw[len(trimmed):]); err == nil && p > 0 {
				base = trimmed
				period = p
			}
		}
	}
	switch base {
	case "sma":
		return Spec{Kind: KindSMA, Period: orDefault(period, 20)}, nil
	case "ema":
		return Spec{Kind: KindEMA, Period: orDefault(period, 20)}, nil
	case "rsi":
		return Spec{Kind: KindRSI, Period: orDefault(period, 14)}, nil
	case "macd":
		return Spec{Kind: KindMACD, Fast: 12, Slow: 26, Signal: 9}, nil
	case "vwap":
		return Spec{Kind: KindVWAP}, nil
	case "bollinger", "boll", "bb":
		return Spec{Kind: KindBollinger, Period: orDefault(period, 20), Mult: 2}, nil
	case "hma":
		return Spec{Kind: KindHMA, Period: orDefault(period, 9)}, nil
	case "atr":
		return Spec{Kind: KindATR, Period: orDefault(period, 14)}, nil
	}
	return Spec{}, fmt.Errorf("unknown indicator %q", name)
}

// ParseSpecs 逐个解析；任何一个未知名称都会使整组解析失败。
func ParseSpecs(names []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(names))
	for _, n := range names {
		s, err := ParseSpec(n)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
