package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibyl/internal/market"
)

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func constantCandles(n int, price float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			Open: price, High: price, Low: price, Close: price, Volume: 10,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 5)
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)

	v, ok = SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestInsufficientDataNeverPanics(t *testing.T) {
	short := []float64{1, 2, 3}

	_, ok := SMA(short, 5)
	assert.False(t, ok)
	_, ok = EMA(short, 5)
	assert.False(t, ok)
	_, ok = RSI(short, 14)
	assert.False(t, ok)
	_, ok = MACD(short, 12, 26, 9)
	assert.False(t, ok)
	_, ok = Bollinger(short, 20, 2)
	assert.False(t, ok)
	_, ok = WMA(short, 5)
	assert.False(t, ok)
	_, ok = HMA(short, 9)
	assert.False(t, ok)
	_, ok = VWAP(nil)
	assert.False(t, ok)
	_, ok = ATR(constantCandles(3, 10), 14)
	assert.False(t, ok)
}

func TestEMAConstantSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 42.5
	}
	v, ok := EMA(closes, 12)
	require.True(t, ok)
	assert.InDelta(t, 42.5, v, 1e-9)
}

func TestRSIAllGainsIsExactly100(t *testing.T) {
	// 15 closes, every delta in the trailing window is a gain.
	v, ok := RSI(risingCloses(15), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestRSIBalancedWindow(t *testing.T) {
	// Alternate +1/-1: average gain equals average loss, RSI = 50.
	closes := []float64{100}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]+1)
		} else {
			closes = append(closes, closes[len(closes)-1]-1)
		}
	}
	v, ok := RSI(closes, 14)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestMACDConstantSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 250.0
	}
	v, ok := MACD(closes, 12, 26, 9)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v.MACDLine, 1e-9)
	assert.InDelta(t, 0.0, v.Histogram, 1e-9)
}

func TestMACDCrossoverDirection(t *testing.T) {
	v, ok := MACD(risingCloses(40), 12, 26, 9)
	require.True(t, ok)
	assert.Equal(t, "bullish", v.Crossover)
	assert.Greater(t, v.MACDLine, v.SignalLine)
}

func TestVWAPConstantPrice(t *testing.T) {
	candles := constantCandles(10, 50)
	series, ok := VWAP(candles)
	require.True(t, ok)
	require.Len(t, series, 10)
	for _, v := range series {
		assert.InDelta(t, 50.0, v, 1e-9)
	}
}

func TestVWAPWeightsByVolume(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 10, Close: 10, Volume: 1},
		{High: 20, Low: 20, Close: 20, Volume: 3},
	}
	series, ok := VWAP(candles)
	require.True(t, ok)
	assert.InDelta(t, 10.0, series[0], 1e-9)
	assert.InDelta(t, 17.5, series[1], 1e-9)
}

func TestBollingerSqueezeOnFlatSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	v, ok := Bollinger(closes, 20, 2)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v.Middle, 1e-9)
	assert.InDelta(t, 100.0, v.Upper, 1e-9)
	assert.True(t, v.Squeeze)
}

func TestWMAWeightsRecentHighest(t *testing.T) {
	v, ok := WMA([]float64{1, 2, 3}, 3)
	require.True(t, ok)
	// (1*1 + 2*2 + 3*3) / 6
	assert.InDelta(t, 14.0/6.0, v, 1e-9)
}

func TestHMAFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 7
	}
	v, ok := HMA(closes, 9)
	require.True(t, ok)
	assert.InDelta(t, 7.0, v, 1e-9)
}

func TestInputsNotMutated(t *testing.T) {
	closes := risingCloses(40)
	snapshot := append([]float64(nil), closes...)
	_, _ = SMA(closes, 20)
	_, _ = EMA(closes, 20)
	_, _ = RSI(closes, 14)
	_, _ = MACD(closes, 12, 26, 9)
	_, _ = Bollinger(closes, 20, 2)
	_, _ = HMA(closes, 9)
	assert.Equal(t, snapshot, closes)
}

func TestParseSpec(t *testing.T) {
	s, err := ParseSpec("rsi_14")
	require.NoError(t, err)
	assert.Equal(t, KindRSI, s.Kind)
	assert.Equal(t, 14, s.Period)

	s, err = ParseSpec("sma20")
	require.NoError(t, err)
	assert.Equal(t, KindSMA, s.Kind)
	assert.Equal(t, 20, s.Period)

	s, err = ParseSpec("MACD")
	require.NoError(t, err)
	assert.Equal(t, 12, s.Fast)
	assert.Equal(t, 26, s.Slow)
	assert.Equal(t, 9, s.Signal)

	_, err = ParseSpec("supertrend")
	assert.Error(t, err)

	_, err = ParseSpecs([]string{"rsi", "supertrend"})
	assert.Error(t, err)
}

func TestComputeDispatch(t *testing.T) {
	candles := constantCandles(40, 100)
	spec, err := ParseSpec("bollinger")
	require.NoError(t, err)
	v, ok := Compute(spec, candles)
	require.True(t, ok)
	bands, isBands := v.(BollingerValue)
	require.True(t, isBands)
	assert.InDelta(t, 100.0, bands.Middle, 1e-9)
}
