package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"sibyl/internal/indicator"
)

// 中文说明：
// 规划 Oracle 的输出必须通过严格 schema 校验才会被采信；
// 抽取失败、schema 不符、指标名未知，任何一种都整体判为无效计划，
// 由调用方转入确定性兜底规划，绝不部分信任畸形输出。

const oraclePlanSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "is_casual": {"type": "boolean"},
    "response": {"type": "string"},
    "required_data": {
      "type": "object",
      "properties": {
        "market": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "kind": {"type": "string", "enum": ["kline", "ticker", "funding", "long_short_ratio"]},
              "symbol": {"type": "string", "minLength": 1},
              "interval": {"type": "string"},
              "limit": {"type": "integer", "minimum": 1},
              "period": {"type": "string"}
            },
            "required": ["kind", "symbol"],
            "additionalProperties": false
          }
        },
        "live_price": {"type": "boolean"},
        "web_search": {"type": "array", "items": {"type": "string"}},
        "indicators": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    }
  },
  "required": ["is_casual"],
  "allOf": [
    {"if": {"properties": {"is_casual": {"const": true}}}, "then": {"required": ["response"]}},
    {"if": {"properties": {"is_casual": {"const": false}}}, "then": {"required": ["required_data"]}}
  ]
}`

var compiledPlanSchema = jsonschema.MustCompileString("oracle_plan.json", oraclePlanSchema)

type oraclePlanDoc struct {
	IsCasual     bool   `json:"is_casual"`
	Response     string `json:"response"`
	RequiredData struct {
		Market []struct {
			Kind     string `json:"kind"`
			Symbol   string `json:"symbol"`
			Interval string `json:"interval"`
			Limit    int    `json:"limit"`
			Period   string `json:"period"`
		} `json:"market"`
		LivePrice  bool     `json:"live_price"`
		WebSearch  []string `json:"web_search"`
		Indicators []string `json:"indicators"`
	} `json:"required_data"`
}

// ExtractJSONObject 提取文本中首个平衡的 JSON 对象（模型常在 JSON 前后夹带说明文字）。
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return strings.TrimSpace(s[start : i+1]), true
				}
			}
		}
	}
	return "", false
}

// ParseOracleOutput 把模型原始输出解析为 DataPlan；任何偏差都返回错误。
func ParseOracleOutput(raw string) (*DataPlan, error) {
	text, ok := ExtractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in oracle output")
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("oracle output is not valid json")
	}
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, err
	}
	if err := compiledPlanSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("oracle plan rejected by schema: %w", err)
	}
	var doc oraclePlanDoc
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc.IsCasual {
		if strings.TrimSpace(doc.Response) == "" {
			return nil, fmt.Errorf("casual plan without response text")
		}
		return Casual(doc.Response), nil
	}
	out := &DataPlan{WantsLivePrice: doc.RequiredData.LivePrice}
	for _, m := range doc.RequiredData.Market {
		req := MarketRequest{
			Kind:     MarketKind(m.Kind),
			Symbol:   strings.ToUpper(strings.TrimSpace(m.Symbol)),
			Interval: strings.TrimSpace(m.Interval),
			Limit:    m.Limit,
			Period:   strings.TrimSpace(m.Period),
		}
		if req.Kind == MarketKline {
			if req.Interval == "" {
				req.Interval = "1h"
			}
			if req.Limit <= 0 {
				req.Limit = 200
			}
		}
		out.Market = append(out.Market, req)
	}
	for _, q := range doc.RequiredData.WebSearch {
		if q = strings.TrimSpace(q); q != "" {
			out.WebQueries = append(out.WebQueries, q)
		}
	}
	specs, err := indicator.ParseSpecs(doc.RequiredData.Indicators)
	if err != nil {
		return nil, fmt.Errorf("invalid indicator in oracle plan: %w", err)
	}
	out.Indicators = specs
	if !out.HasWork() {
		return nil, fmt.Errorf("data plan without any required data")
	}
	return out, nil
}
