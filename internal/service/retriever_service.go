// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"laodong-rag-go/pkg/embedding"
	"laodong-rag-go/pkg/es"
)

// Passage 是一次知识库检索的结果。
// Found 为 false 表示索引中没有任何命中，Text 此时为空字串。
type Passage struct {
	Text  string
	Found bool
}

// RetrieverService 定义了知识库检索的接口。
type RetrieverService interface {
	Retrieve(ctx context.Context, query string) (Passage, error)
}

type retrieverService struct {
	embeddingClient embedding.Client
	esClient        *es.Client
}

// NewRetrieverService 创建一个新的 RetrieverService 实例。
func NewRetrieverService(embeddingClient embedding.Client, esClient *es.Client) RetrieverService {
	return &retrieverService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
	}
}

// Retrieve 将查询向量化后在知识库中找最相关的一篇文档。
func (s *retrieverService) Retrieve(ctx context.Context, query string) (Passage, error) {
	vector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return Passage{}, fmt.Errorf("failed to embed query: %w", err)
	}

	text, found, err := s.esClient.SearchTopPassage(ctx, vector)
	if err != nil {
		return Passage{}, fmt.Errorf("failed to search knowledge base: %w", err)
	}
	return Passage{Text: text, Found: found}, nil
}
