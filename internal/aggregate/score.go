package aggregate

import "math"

// Score 聚合质量置信分，纯函数。基线 50，按取数成功率与
// 实时价/指标/网页内容的有无加分，结果收敛在 [0,100]。
func Score(data *AggregatedData) int {
	score := 50.0
	if success, total := data.FetchCounts(); total > 0 {
		score += 30.0 * float64(success) / float64(total)
	}
	if data.HasLivePrice() {
		score += 10
	}
	if data.HasIndicators() {
		score += 10
	}
	if data.HasWebContent() {
		score += 5
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}
