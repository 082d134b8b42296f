package service

import (
	"context"
	"fmt"
	"strings"

	"laodong-rag-go/internal/config"
	"laodong-rag-go/pkg/log"
	"laodong-rag-go/pkg/websearch"
)

// PageFetcher 抓取指定 URL 的主要文字内容。
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// WebContextService 定义了网路搜寻降级的接口。
type WebContextService interface {
	// BuildWebContext 搜寻并抓取网页，组合成参考资料文字。
	// 返回空字串表示降级不可用或没有取得任何内容；内部错误不外传。
	BuildWebContext(ctx context.Context, query string) string
}

type webContextService struct {
	searchClient websearch.Client
	fetcher      PageFetcher
	topK         int
	charLimit    int
}

// NewWebContextService 创建一个新的 WebContextService 实例。
func NewWebContextService(searchClient websearch.Client, fetcher PageFetcher, cfg config.WebSearchConfig) WebContextService {
	return &webContextService{
		searchClient: searchClient,
		fetcher:      fetcher,
		topK:         cfg.TopK,
		charLimit:    cfg.CharLimit,
	}
}

func (s *webContextService) BuildWebContext(ctx context.Context, query string) string {
	results, err := s.searchClient.Search(ctx, query, s.topK)
	if err != nil {
		log.Warnf("网路搜寻失败: %v", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var blocks []string
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		text, err := s.fetcher.FetchPage(ctx, r.Link)
		if err != nil {
			log.Warnf("抓取搜寻结果页面失败: url=%s, err=%v", r.Link, err)
			continue
		}
		if text == "" {
			continue
		}
		// 按字元数截断，避免把整页灌进 prompt
		runes := []rune(text)
		if s.charLimit > 0 && len(runes) > s.charLimit {
			text = string(runes[:s.charLimit])
		}
		blocks = append(blocks, fmt.Sprintf("【來源】%s\n%s\n【內容】\n%s", r.Title, r.Link, text))
	}
	return strings.Join(blocks, "\n\n")
}
