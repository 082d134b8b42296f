package service

import (
	"context"
	"fmt"
	"strings"

	"laodong-rag-go/internal/model"
	"laodong-rag-go/internal/repository"
	"laodong-rag-go/pkg/log"
)

// noDataSentinel 在知识库没有命中时充当参考资料，提示模型拒答。
const noDataSentinel = "抱歉，知識庫中找不到相關資料。"

// refusalMarkers 是拒答判定的子字串集合。这是启发式判定，
// 正常回答恰好包含这些字样时会误触发降级，属于接受的取舍。
var refusalMarkers = []string{
	"抱歉，知識庫中找不到相關資料",
	"無法回答這個問題",
}

// historyLimit 每轮对话参与增强查询的最大历史条数。
const historyLimit = 20

// RAGService 定义了问答编排的接口。
type RAGService interface {
	// Generate 无状态问答：检索、生成、必要时网路降级。
	Generate(ctx context.Context, question string) (string, error)
	// Chat 对话式问答：以历史增强检索，并把本轮写入对话记忆。
	// 返回最终回答与更新后的完整历史（既有历史加本轮两条）。
	Chat(ctx context.Context, userID, chatID, question string) (string, []model.Turn, error)
}

type ragService struct {
	retriever  RetrieverService
	generator  GeneratorService
	webContext WebContextService
	memoryRepo repository.MemoryRepository
}

// NewRAGService 创建一个新的 RAGService 实例。
func NewRAGService(retriever RetrieverService, generator GeneratorService, webContext WebContextService, memoryRepo repository.MemoryRepository) RAGService {
	return &ragService{
		retriever:  retriever,
		generator:  generator,
		webContext: webContext,
		memoryRepo: memoryRepo,
	}
}

func (s *ragService) Generate(ctx context.Context, question string) (string, error) {
	return s.answer(ctx, question, question)
}

func (s *ragService) Chat(ctx context.Context, userID, chatID, question string) (string, []model.Turn, error) {
	history, err := s.memoryRepo.Read(ctx, userID, chatID, historyLimit)
	if err != nil {
		log.Errorf("读取对话历史失败: user=%s, chat=%s, err=%v", userID, chatID, err)
		history = nil
	}

	// 检索用历史增强的查询，生成始终用原始问题
	answer, err := s.answer(ctx, question, augmentQuery(history, question))
	if err != nil {
		return "", nil, err
	}

	// 即使回答是拒答也写入记忆；写入失败只记录，不影响已生成的回答
	userTurn := model.Turn{Role: model.RoleUser, Message: question}
	botTurn := model.Turn{Role: model.RoleBot, Message: answer}
	if err := s.memoryRepo.Append(ctx, userID, chatID, userTurn); err != nil {
		log.Errorf("保存使用者消息失败: user=%s, chat=%s, err=%v", userID, chatID, err)
	}
	if err := s.memoryRepo.Append(ctx, userID, chatID, botTurn); err != nil {
		log.Errorf("保存机器人消息失败: user=%s, chat=%s, err=%v", userID, chatID, err)
	}

	updated := append(history, userTurn, botTurn)
	return answer, updated, nil
}

// answer 执行检索、生成与单轮网路降级。
func (s *ragService) answer(ctx context.Context, question, retrievalQuery string) (string, error) {
	passage, err := s.retriever.Retrieve(ctx, retrievalQuery)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	contextText := passage.Text
	if !passage.Found {
		contextText = noDataSentinel
	}

	answer, err := s.generator.Generate(ctx, question, contextText)
	if err != nil {
		return "", err
	}

	if !passage.Found || containsRefusalMarker(answer) {
		log.Infof("知识库无法回答，尝试网路搜寻降级: %s", question)
		webCtx := s.webContext.BuildWebContext(ctx, question)
		if webCtx == "" {
			// 降级没有取得任何内容，维持原始回答
			return answer, nil
		}
		// 不做二次降级：以网路资料重生成的结果即为最终回答
		answer, err = s.generator.Generate(ctx, question, webCtx)
		if err != nil {
			return "", err
		}
	}
	return answer, nil
}

// augmentQuery 将历史按「role: message」逐行铺开，最后附上本轮问题。
// 没有历史时直接返回原始问题。
func augmentQuery(history []model.Turn, question string) string {
	if len(history) == 0 {
		return question
	}
	lines := make([]string, 0, len(history)+1)
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Message))
	}
	lines = append(lines, fmt.Sprintf("%s: %s", model.RoleUser, question))
	return strings.Join(lines, "\n")
}

func containsRefusalMarker(answer string) bool {
	for _, marker := range refusalMarkers {
		if strings.Contains(answer, marker) {
			return true
		}
	}
	return false
}
