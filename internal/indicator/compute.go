package indicator

import "sibyl/internal/market"

// Compute 按 Spec 分发到具体指标；返回值在 ok=false 时表示数据不足。
// switch 覆盖全部枚举变体，未知 Kind 在计划解析阶段就不可能出现。
func Compute(spec Spec, candles []market.Candle) (any, bool) {
	closes := market.Closes(candles)
	switch spec.Kind {
	case KindSMA:
		return lift(SMA(closes, spec.Period))
	case KindEMA:
		return lift(EMA(closes, spec.Period))
	case KindRSI:
		return lift(RSI(closes, spec.Period))
	case KindMACD:
		v, ok := MACD(closes, spec.Fast, spec.Slow, spec.Signal)
		return v, ok
	case KindVWAP:
		v, ok := VWAP(candles)
		return v, ok
	case KindBollinger:
		v, ok := Bollinger(closes, spec.Period, spec.Mult)
		return v, ok
	case KindHMA:
		return lift(HMA(closes, spec.Period))
	case KindATR:
		return lift(ATR(candles, spec.Period))
	}
	return nil, false
}

func lift(v float64, ok bool) (any, bool) {
	return v, ok
}
