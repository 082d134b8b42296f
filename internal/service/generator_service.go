package service

import (
	"context"
	"fmt"

	"laodong-rag-go/pkg/llm"
)

// answerPromptTemplate 要求模型基于参考资料作答，资料不足时明确拒答。
// 拒答句会被编排层用来判断是否触发网路搜寻降级。
const answerPromptTemplate = `請根據以下提供的【參考資料】來回答【使用者的問題】。
你的回答應該盡量基於參考資料，如果參考資料無法回答，請回答「根據我所知的資料，我無法回答這個問題」。

【參考資料】:
%s

【使用者的問題】:
%s

你的回答:`

// GeneratorService 定义了答案生成的接口。
type GeneratorService interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
}

type generatorService struct {
	llmClient llm.Client
}

// NewGeneratorService 创建一个新的 GeneratorService 实例。
func NewGeneratorService(llmClient llm.Client) GeneratorService {
	return &generatorService{llmClient: llmClient}
}

// Generate 结合参考资料与问题生成回答，模型输出原样返回。
func (s *generatorService) Generate(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(answerPromptTemplate, contextText, question)
	answer, err := s.llmClient.Completion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}
