// Package websearch 提供了 Google Custom Search JSON API 的客户端。
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"laodong-rag-go/internal/config"
	"laodong-rag-go/pkg/log"
)

const searchEndpoint = "https://www.googleapis.com/customsearch/v1"

const searchTimeout = 15 * time.Second

// Result 是单条搜索结果。
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Client defines the interface for a web search client.
type Client interface {
	// Search 搜索网页并返回前 num 笔结果。
	// 未配置 API 金钥或 CSE ID 时返回空列表，这是静默停用而非错误。
	Search(ctx context.Context, query string, num int) ([]Result, error)
}

type googleClient struct {
	cfg      config.WebSearchConfig
	client   *http.Client
	endpoint string
}

// NewClient 创建一个新的 Google Custom Search 客户端。
func NewClient(cfg config.WebSearchConfig) Client {
	return &googleClient{
		cfg:      cfg,
		client:   &http.Client{},
		endpoint: searchEndpoint,
	}
}

type searchResponse struct {
	Items []Result `json:"items"`
}

func (c *googleClient) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if c.cfg.APIKey == "" || c.cfg.CSEID == "" {
		log.Warnf("缺少 GOOGLE_CSE_ID 或 GOOGLE_SEARCH_API_KEY，跳过 Google 搜索后援")
		return nil, nil
	}

	// 上游 API 限制 num 的有效范围为 1-10
	if num < 1 {
		num = 1
	}
	if num > 10 {
		num = 10
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("cx", c.cfg.CSEID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("hl", "zh-TW")

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned non-200 status: %s", resp.Status)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return searchResp.Items, nil
}
