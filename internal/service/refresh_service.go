package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"laodong-rag-go/internal/config"
	"laodong-rag-go/internal/model"
	"laodong-rag-go/pkg/embedding"
	"laodong-rag-go/pkg/log"
)

// SourceFetcher 抓取资料来源，页面与 CSV 各走一条路径。
type SourceFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
	FetchCSV(ctx context.Context, csvURL string) (string, error)
}

// KnowledgeIndex 是更新任务依赖的知识库索引操作。
type KnowledgeIndex interface {
	DeleteAll(ctx context.Context) error
	IndexDocument(ctx context.Context, doc model.KnowledgeDocument, vector []float32, modelVersion string) error
	Count(ctx context.Context) (int64, error)
}

// RefreshService 定义了知识库更新任务的接口。
type RefreshService interface {
	// Run 执行一次完整的抓取、清空、重建流程。
	Run(ctx context.Context) error
	// Start 立即执行一次更新，之后每天在配置的时刻执行，直到 ctx 取消。
	Start(ctx context.Context)
}

type refreshService struct {
	fetcher         SourceFetcher
	index           KnowledgeIndex
	embeddingClient embedding.Client
	cfg             config.KnowledgeConfig
	modelVersion    string

	// sleep 可在测试中替换，避免真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRefreshService 创建一个新的 RefreshService 实例。
// modelVersion 随文档一并写入索引，标记向量出自哪个 Embedding 模型。
func NewRefreshService(fetcher SourceFetcher, index KnowledgeIndex, embeddingClient embedding.Client, cfg config.KnowledgeConfig, modelVersion string) RefreshService {
	return &refreshService{
		fetcher:         fetcher,
		index:           index,
		embeddingClient: embeddingClient,
		cfg:             cfg,
		modelVersion:    modelVersion,
		sleep:           sleepCtx,
	}
}

// isCSVSource 判断资料来源是否为 CSV（政府开放平台 datastore API 或 .csv 档）。
func isCSVSource(url string) bool {
	return strings.Contains(url, "api/v1/rest/datastore") || strings.HasSuffix(url, ".csv")
}

func (s *refreshService) Run(ctx context.Context) error {
	log.Info("===== 開始執行知識庫更新任務 =====")

	// 阶段 1: 逐一抓取资料来源，单一来源失败只跳过不中止
	var docs []model.KnowledgeDocument
	fetchDelay := time.Duration(s.cfg.FetchDelaySeconds) * time.Second
	for i, url := range s.cfg.Sources {
		var content string
		var err error
		if isCSVSource(url) {
			content, err = s.fetcher.FetchCSV(ctx, url)
		} else {
			content, err = s.fetcher.FetchPage(ctx, url)
		}
		if err != nil {
			log.Errorf("抓取资料来源失败，跳过: url=%s, err=%v", url, err)
		} else if content != "" {
			docs = append(docs, model.KnowledgeDocument{
				ID:      fmt.Sprintf("doc_%d", i+1),
				Content: content,
				Source:  url,
			})
		}

		if err := s.sleep(ctx, fetchDelay); err != nil {
			return err
		}
	}

	// 阶段 2: 没抓到任何文件就不动现有索引
	if len(docs) == 0 {
		log.Warnf("未抓取到任何文件，本次更新終止。")
		return nil
	}
	log.Infof("準備更新資料庫，共 %d 筆新文件。", len(docs))

	// 阶段 3: 清空旧文件
	if err := s.index.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to purge knowledge index: %w", err)
	}

	// 阶段 4: 分批向量化并写入，批次之间延迟以避开 API 频率限制。
	// 清空与写入之间没有原子性：中途失败会留下不完整的索引，
	// 由下一次排程执行补齐。
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	batchDelay := time.Duration(s.cfg.BatchDelaySeconds) * time.Second
	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		log.Infof("正在處理第 %d 組，共 %d 筆文件...", start/batchSize+1, end-start)

		for _, doc := range docs[start:end] {
			vector, err := s.embeddingClient.CreateEmbedding(ctx, doc.Content)
			if err != nil {
				if errors.Is(err, embedding.ErrQuotaExhausted) {
					log.Errorf("Embedding API 額度已用完，無法更新知識庫！")
				}
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			if err := s.index.IndexDocument(ctx, doc, vector, s.modelVersion); err != nil {
				return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
			}
		}

		if end < len(docs) {
			log.Infof("等待 %s，以避免超過 API 請求頻率限制...", batchDelay)
			if err := s.sleep(ctx, batchDelay); err != nil {
				return err
			}
		}
	}

	// 阶段 5: 记录最终状态
	count, err := s.index.Count(ctx)
	if err != nil {
		log.Errorf("查询知识库文档数失败: %v", err)
	} else {
		log.Infof("成功更新知識庫，目前共有 %d 筆文件。", count)
	}
	log.Info("===== 知識庫更新任務執行完畢 =====")
	return nil
}

// Start 先执行一次启动更新，之后每天固定时刻再执行。
// 同一时间只会有这个 goroutine 在跑更新，排程本身不做防重入。
func (s *refreshService) Start(ctx context.Context) {
	if err := s.Run(ctx); err != nil {
		log.Errorf("启动时知识库更新失败: %v", err)
	}

	for {
		wait := time.Until(nextRun(time.Now(), s.cfg.RefreshHour, s.cfg.RefreshMinute))
		log.Infof("下一次知识库更新在 %s 后", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Run(ctx); err != nil {
			log.Errorf("排程知识库更新失败: %v", err)
		}
	}
}

// nextRun 返回 now 之后下一个 hour:minute 时刻。
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// sleepCtx 可被 ctx 取消的 sleep。
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
