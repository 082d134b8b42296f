package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laodong-rag-go/internal/config"
	"laodong-rag-go/internal/model"
	"laodong-rag-go/pkg/embedding"
)

type fakeSourceFetcher struct {
	pages map[string]string
	csvs  map[string]string
	errs  map[string]error

	pageCalls []string
	csvCalls  []string
}

func (f *fakeSourceFetcher) FetchPage(_ context.Context, url string) (string, error) {
	f.pageCalls = append(f.pageCalls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

func (f *fakeSourceFetcher) FetchCSV(_ context.Context, url string) (string, error) {
	f.csvCalls = append(f.csvCalls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.csvs[url], nil
}

type fakeIndex struct {
	mu      sync.Mutex
	purged  int
	indexed []model.KnowledgeDocument
}

func (f *fakeIndex) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged++
	f.indexed = nil
	return nil
}

func (f *fakeIndex) IndexDocument(_ context.Context, doc model.KnowledgeDocument, _ []float32, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndex) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.indexed)), nil
}

// fakeEmbedder 在第 failAt 次呼叫时返回 failWith（failAt 从 1 起算，0 表示不失败）。
type fakeEmbedder struct {
	calls    int
	failAt   int
	failWith error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return nil, f.failWith
	}
	return []float32{0.1, 0.2}, nil
}

func refreshCfg(sources ...string) config.KnowledgeConfig {
	return config.KnowledgeConfig{
		Sources:   sources,
		BatchSize: 2,
	}
}

func TestRefreshRun_FetchesPurgesAndIndexes(t *testing.T) {
	fetcher := &fakeSourceFetcher{
		pages: map[string]string{"https://law.example/article": "法規內容"},
		csvs:  map[string]string{"https://data.example/api/v1/rest/datastore/x": "欄位: 值"},
	}
	index := &fakeIndex{}
	svc := NewRefreshService(fetcher, index, &fakeEmbedder{}, refreshCfg(
		"https://law.example/article",
		"https://data.example/api/v1/rest/datastore/x",
	), "test-model")

	require.NoError(t, svc.Run(context.Background()))

	// 来源按 URL 形态分流
	assert.Equal(t, []string{"https://law.example/article"}, fetcher.pageCalls)
	assert.Equal(t, []string{"https://data.example/api/v1/rest/datastore/x"}, fetcher.csvCalls)

	assert.Equal(t, 1, index.purged)
	require.Len(t, index.indexed, 2)
	// 文档 ID 按来源顺序编号
	assert.Equal(t, "doc_1", index.indexed[0].ID)
	assert.Equal(t, "https://law.example/article", index.indexed[0].Source)
	assert.Equal(t, "doc_2", index.indexed[1].ID)
}

func TestRefreshRun_CSVDetectionBySuffix(t *testing.T) {
	fetcher := &fakeSourceFetcher{csvs: map[string]string{"https://x.example/file.csv": "a: b"}}
	svc := NewRefreshService(fetcher, &fakeIndex{}, &fakeEmbedder{}, refreshCfg("https://x.example/file.csv"), "m")

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, []string{"https://x.example/file.csv"}, fetcher.csvCalls)
	assert.Empty(t, fetcher.pageCalls)
}

func TestRefreshRun_SourceFailureSkipsNotAborts(t *testing.T) {
	fetcher := &fakeSourceFetcher{
		pages: map[string]string{"https://ok.example": "內容"},
		errs:  map[string]error{"https://dead.example": errors.New("connection refused")},
	}
	index := &fakeIndex{}
	svc := NewRefreshService(fetcher, index, &fakeEmbedder{}, refreshCfg(
		"https://dead.example",
		"https://ok.example",
	), "m")

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, index.indexed, 1)
	// 失败来源的序号空出，保持编号与来源位置对应
	assert.Equal(t, "doc_2", index.indexed[0].ID)
}

func TestRefreshRun_ZeroDocumentsLeavesIndexUntouched(t *testing.T) {
	fetcher := &fakeSourceFetcher{errs: map[string]error{"https://dead.example": errors.New("down")}}
	index := &fakeIndex{indexed: []model.KnowledgeDocument{{ID: "old"}}}
	svc := NewRefreshService(fetcher, index, &fakeEmbedder{}, refreshCfg("https://dead.example"), "m")

	require.NoError(t, svc.Run(context.Background()))
	assert.Zero(t, index.purged)
	assert.Len(t, index.indexed, 1)
}

func TestRefreshRun_BatchDelayOnlyBetweenBatches(t *testing.T) {
	var urls []string
	pages := make(map[string]string)
	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://law.example/page-%d", i)
		urls = append(urls, url)
		pages[url] = fmt.Sprintf("內容 %d", i)
	}

	index := &fakeIndex{}
	svc := NewRefreshService(&fakeSourceFetcher{pages: pages}, index, &fakeEmbedder{}, config.KnowledgeConfig{
		Sources:           urls,
		BatchSize:         4,
		BatchDelaySeconds: 1,
	}, "m").(*refreshService)

	var delays []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, index.indexed, 10)

	// 10 笔文件按 4/4/2 分三组，批次延迟只出现在组与组之间，最后一组之后没有
	var batchDelays int
	for _, d := range delays {
		if d == time.Second {
			batchDelays++
		}
	}
	assert.Equal(t, 2, batchDelays)
}

func TestRefreshRun_QuotaExhaustionStopsMidRun(t *testing.T) {
	fetcher := &fakeSourceFetcher{pages: map[string]string{
		"https://a.example": "a",
		"https://b.example": "b",
		"https://c.example": "c",
	}}
	index := &fakeIndex{}
	embedder := &fakeEmbedder{failAt: 3, failWith: embedding.ErrQuotaExhausted}
	svc := NewRefreshService(fetcher, index, embedder, refreshCfg(
		"https://a.example", "https://b.example", "https://c.example",
	), "m")

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrQuotaExhausted)
	// 清空已执行、部分文档已写入：接受的不一致状态
	assert.Equal(t, 1, index.purged)
	assert.Len(t, index.indexed, 2)
}

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)

	// 今天的时刻还没到
	now := time.Date(2025, 6, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 1, 3, 0, 0, 0, loc), nextRun(now, 3, 0))

	// 今天的时刻已过，排到明天
	now = time.Date(2025, 6, 1, 3, 0, 1, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, loc), nextRun(now, 3, 0))

	// 恰好等于排程时刻也排到明天
	now = time.Date(2025, 6, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, loc), nextRun(now, 3, 0))
}

func TestGeneratorBuildsPromptWithContextAndQuestion(t *testing.T) {
	var captured string
	gen := NewGeneratorService(promptCapturingLLM{prompt: &captured})

	answer, err := gen.Generate(context.Background(), "什麼是職業傷害", "勞工保險條例第 34 條...")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Contains(t, captured, "【參考資料】:\n勞工保險條例第 34 條...")
	assert.Contains(t, captured, "【使用者的問題】:\n什麼是職業傷害")
	assert.Contains(t, captured, "根據我所知的資料，我無法回答這個問題")
}

type promptCapturingLLM struct {
	prompt *string
}

func (p promptCapturingLLM) Completion(_ context.Context, prompt string) (string, error) {
	*p.prompt = prompt
	return "ok", nil
}
