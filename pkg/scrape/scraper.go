// Package scrape 负责所有与资料获取相关的逻辑（网页抓取与 CSV 处理）。
package scrape

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/traditionalchinese"

	"laodong-rag-go/pkg/log"
)

// 部分政府网站会拒绝无 UA 的请求
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const (
	pageTimeout = 15 * time.Second
	csvTimeout  = 60 * time.Second
)

// mainContentSelectors 按优先级排列的主要内容容器，命中第一个即用。
// 依次对应全国法规资料库、政府资料开放平台、劳动部与劳保局的页面结构。
var mainContentSelectors = []string{
	"div.law-content",
	"div.dataset-description",
	"div#maincontent",
	"div.cp",
}

// Scraper 抓取网页主体文字与 CSV 资料源。
type Scraper struct {
	client *http.Client
}

// NewScraper 创建一个新的 Scraper 实例。
func NewScraper() *Scraper {
	return &Scraper{client: &http.Client{}}
}

// FetchPage 抓取指定 URL 的主要文字内容。
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	resp, err := s.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 政府网站编码不一，按响应头声明转成 UTF-8 再解析
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("无法识别页面编码: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("解析 HTML 失败: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	var sel *goquery.Selection
	for _, selector := range mainContentSelectors {
		if found := doc.Find(selector); found.Length() > 0 {
			sel = found.First()
			break
		}
	}
	if sel == nil {
		sel = doc.Find("body")
	}

	text := cleanText(sel.Text())
	log.Infof("成功爬取 URL: %s，获取 %d 字元", pageURL, utf8.RuneCountInString(text))
	return text, nil
}

// FetchCSV 下载并处理 CSV 档案，将其内容转换为单一文字字串。
// 每一列转为「栏位名: 值」串接的一行，过滤掉空值。
func (s *Scraper) FetchCSV(ctx context.Context, csvURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, csvTimeout)
	defer cancel()

	resp, err := s.get(ctx, csvURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取 CSV 响应失败: %w", err)
	}

	// 台湾政府网站常见 BIG5 编码，UTF-8 校验失败时降级解码
	if !utf8.Valid(raw) {
		log.Warnf("UTF-8 解码失败，尝试使用 BIG5 解码: %s", csvURL)
		decoded, decErr := traditionalchinese.Big5.NewDecoder().Bytes(raw)
		if decErr != nil {
			return "", fmt.Errorf("BIG5 解码失败: %w", decErr)
		}
		raw = decoded
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return "", fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	var rows []string
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 单行格式错误跳过，不放弃整个档案
			continue
		}
		var pairs []string
		for i, val := range record {
			if i >= len(header) {
				break
			}
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %s", strings.TrimSpace(header[i]), val))
		}
		if len(pairs) > 0 {
			rows = append(rows, strings.Join(pairs, ", "))
		}
		count++
	}

	log.Infof("成功处理 CSV URL: %s，转换了 %d 笔资料。", csvURL, count)
	return strings.Join(rows, "\n"), nil
}

func (s *Scraper) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("请求返回非 200 状态码: %s", resp.Status)
	}
	return resp, nil
}

// cleanText 去除空白行并修剪每一行，行间以换行符连接。
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
