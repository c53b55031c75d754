package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"sibyl/internal/market"
)

// ATR 平均真实波幅，基于 TALib 计算后取最近一个有效值。
func ATR(candles []market.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) <= period {
		return 0, false
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	if len(series) == 0 {
		return 0, false
	}
	// TALib 用 0 填充前 period 个位置；len>period 已保证末位是真实值。
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
