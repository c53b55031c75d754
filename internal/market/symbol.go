package market

import "strings"

var knownQuotes = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

// SplitPair 把 "BTCUSDT" 这类紧凑交易对拆成 base/quote。
// 已带分隔符的输入（BTC/USDT、BTC-USDT、BTC_USDT）同样接受。
func SplitPair(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.Split(s, sep); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], true
		}
	}
	for _, q := range knownQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return "", "", false
}
