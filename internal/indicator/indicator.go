package indicator

import (
	"math"

	"sibyl/internal/market"
)

// 中文说明：
// 纯函数技术指标库。输入为按时间升序（最旧在前）的收盘价序列，
// 数据不足时返回 ok=false，调用方据此跳过单个指标而不中断整批计算。
// 所有函数都不修改输入切片。

// SMA 最近 period 个值的算术平均。
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA 指数移动平均：k=2/(period+1)，以 values[0] 为种子向前递推。
func EMA(values []float64, period int) (float64, bool) {
	series, ok := emaSeries(values, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

// emaSeries 返回与输入等长的 EMA 序列（种子即首元素）。
func emaSeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period {
		return nil, false
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, true
}

// RSI 在尾部 period 个增量上取简单平均（Wilder 简单式，非平滑式）。
// 区间内没有任何下跌时按惯例返回 100。
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	avgGain := gains / float64(period)
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACDValue MACD 计算结果。
type MACDValue struct {
	MACDLine   float64 `json:"macd_line"`
	SignalLine float64 `json:"signal_line"`
	Histogram  float64 `json:"histogram"`
	Crossover  string  `json:"crossover_direction"`
}

// MACD 快慢 EMA 之差为 MACD 线；信号线是对 slow-1 起每个索引处的
// 历史 MACD 值序列再做一次 EMA，而不是单点。
func MACD(closes []float64, fast, slow, signal int) (MACDValue, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return MACDValue{}, false
	}
	if len(closes) < slow+signal {
		return MACDValue{}, false
	}
	fastSeries, _ := emaSeries(closes, fast)
	slowSeries, _ := emaSeries(closes, slow)
	macdSeries := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macdSeries = append(macdSeries, fastSeries[i]-slowSeries[i])
	}
	signalSeries, ok := emaSeries(macdSeries, signal)
	if !ok {
		return MACDValue{}, false
	}
	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := signalSeries[len(signalSeries)-1]
	direction := "bearish"
	if macdLine > signalLine {
		direction = "bullish"
	}
	return MACDValue{
		MACDLine:   macdLine,
		SignalLine: signalLine,
		Histogram:  macdLine - signalLine,
		Crossover:  direction,
	}, true
}

// VWAP 每根K线一个值：累计(典型价×量)/累计量，典型价=(H+L+C)/3。
// 不携带跨调用状态，可随时从任意窗口重算。
func VWAP(candles []market.Candle) ([]float64, bool) {
	if len(candles) == 0 {
		return nil, false
	}
	out := make([]float64, len(candles))
	cumPV, cumVol := 0.0, 0.0
	for i, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		cumPV += tp * c.Volume
		cumVol += c.Volume
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		} else {
			out[i] = tp
		}
	}
	return out, true
}

// BollingerValue 布林带结果；Squeeze 表示标准差收敛到中轨的 10% 以下。
type BollingerValue struct {
	Middle  float64 `json:"middle"`
	Upper   float64 `json:"upper"`
	Lower   float64 `json:"lower"`
	Squeeze bool    `json:"squeeze"`
}

// Bollinger 中轨为 SMA(period)，带宽为 k 倍总体标准差。
func Bollinger(closes []float64, period int, k float64) (BollingerValue, bool) {
	middle, ok := SMA(closes, period)
	if !ok {
		return BollingerValue{}, false
	}
	window := closes[len(closes)-period:]
	variance := 0.0
	for _, v := range window {
		d := v - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return BollingerValue{
		Middle:  middle,
		Upper:   middle + k*sd,
		Lower:   middle - k*sd,
		Squeeze: sd < 0.1*middle,
	}, true
}

// WMA 线性加权均线：权重 1..period，最新值权重最大。
func WMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	window := values[len(values)-period:]
	sum, weightSum := 0.0, 0.0
	for i, v := range window {
		w := float64(i + 1)
		sum += v * w
		weightSum += w
	}
	return sum / weightSum, true
}

// HMA 赫尔均线：WMA(2·WMA(period/2) − WMA(period), sqrt(period))。
func HMA(values []float64, period int) (float64, bool) {
	if period <= 1 || len(values) < period {
		return 0, false
	}
	half := period / 2
	if half < 1 {
		half = 1
	}
	sqrtP := int(math.Round(math.Sqrt(float64(period))))
	if sqrtP < 1 {
		sqrtP = 1
	}
	diff := make([]float64, 0, len(values)-period+1)
	for i := period - 1; i < len(values); i++ {
		prefix := values[:i+1]
		full, okFull := WMA(prefix, period)
		halfVal, okHalf := WMA(prefix, half)
		if !okFull || !okHalf {
			return 0, false
		}
		diff = append(diff, 2*halfVal-full)
	}
	return WMA(diff, sqrtP)
}
