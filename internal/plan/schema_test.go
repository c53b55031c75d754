package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibyl/internal/indicator"
)

func TestParseOracleOutputDataPlan(t *testing.T) {
	raw := "Here is the plan:\n" + `{
		"is_casual": false,
		"required_data": {
			"market": [{"kind":"kline","symbol":"btcusdt","interval":"4h","limit":120}],
			"live_price": true,
			"web_search": ["bitcoin etf flows"],
			"indicators": ["rsi_14", "macd"]
		}
	}` + "\nThat is all."

	p, err := ParseOracleOutput(raw)
	require.NoError(t, err)
	assert.False(t, p.IsCasual)
	require.Len(t, p.Market, 1)
	assert.Equal(t, MarketKline, p.Market[0].Kind)
	assert.Equal(t, "BTCUSDT", p.Market[0].Symbol)
	assert.Equal(t, "4h", p.Market[0].Interval)
	assert.True(t, p.WantsLivePrice)
	assert.Equal(t, []string{"bitcoin etf flows"}, p.WebQueries)
	require.Len(t, p.Indicators, 2)
	assert.Equal(t, indicator.KindRSI, p.Indicators[0].Kind)
}

func TestParseOracleOutputCasual(t *testing.T) {
	p, err := ParseOracleOutput(`{"is_casual": true, "response": "Hello! Ask me about a market."}`)
	require.NoError(t, err)
	assert.True(t, p.IsCasual)
	assert.NotEmpty(t, p.CasualResponse)
}

func TestParseOracleOutputRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no json":              "I could not decide.",
		"missing is_casual":    `{"required_data":{"live_price":true}}`,
		"casual no response":   `{"is_casual": true}`,
		"data without payload": `{"is_casual": false, "required_data": {}}`,
		"bad market kind":      `{"is_casual": false, "required_data": {"market":[{"kind":"orderbook","symbol":"BTCUSDT"}]}}`,
		"unknown indicator":    `{"is_casual": false, "required_data": {"indicators":["supertrend"]}}`,
		"extra field":          `{"is_casual": false, "required_data": {"live_price": true, "leverage": 10}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOracleOutput(raw)
			assert.Error(t, err)
		})
	}
}

func TestExtractJSONObjectHandlesBracesInStrings(t *testing.T) {
	text, ok := ExtractJSONObject(`prefix {"a": "value with } brace", "b": 1} suffix`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "value with } brace", "b": 1}`, text)
}

func TestKlineDefaultsApplied(t *testing.T) {
	p, err := ParseOracleOutput(`{"is_casual": false, "required_data": {"market":[{"kind":"kline","symbol":"ETHUSDT"}]}}`)
	require.NoError(t, err)
	assert.Equal(t, "1h", p.Market[0].Interval)
	assert.Equal(t, 200, p.Market[0].Limit)
}
