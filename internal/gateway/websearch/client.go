package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.tavily.com"

// Searcher 网页搜索能力的最小契约；空字符串表示检索无结果但调用成功。
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Depth      string
	MaxResults int
	Topic      string
	Timeout    time.Duration
}

// Client Tavily 搜索客户端，只暴露“查询→摘要文本”一种调用。
type Client struct {
	cfg   Config
	httpc *http.Client
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Depth == "" {
		cfg.Depth = "basic"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{cfg: cfg, httpc: &http.Client{Timeout: cfg.Timeout}}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	Topic         string `json:"topic,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is empty")
	}
	payload := searchRequest{
		APIKey:        c.cfg.APIKey,
		Query:         query,
		SearchDepth:   c.cfg.Depth,
		MaxResults:    c.cfg.MaxResults,
		Topic:         c.cfg.Topic,
		IncludeAnswer: true,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("search status=%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.Answer) != "" {
		return parsed.Answer, nil
	}
	var b2 strings.Builder
	for i, r := range parsed.Results {
		if i > 0 {
			b2.WriteString("\n")
		}
		if r.Title != "" {
			b2.WriteString(r.Title)
			b2.WriteString(": ")
		}
		b2.WriteString(r.Content)
	}
	return b2.String(), nil
}
