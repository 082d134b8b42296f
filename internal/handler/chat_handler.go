// Package handler 包含了处理 HTTP 请求的处理器。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"laodong-rag-go/internal/middleware"
	"laodong-rag-go/internal/model"
	"laodong-rag-go/internal/service"
	"laodong-rag-go/pkg/embedding"
	"laodong-rag-go/pkg/llm"
	"laodong-rag-go/pkg/log"
)

// ChatHandler 负责处理对话式问答请求。
type ChatHandler struct {
	ragService service.RAGService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(ragService service.RAGService) *ChatHandler {
	return &ChatHandler{ragService: ragService}
}

// Chat 处理 POST /chat 请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.ChatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "請求格式錯誤，需要包含 'message' 和 'chat_id' 欄位"})
		return
	}

	identity := c.GetString(middleware.ContextKeyIdentity)
	if identity == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "JWT payload 缺少有效的使用者識別 (email/username)"})
		return
	}

	reply, history, err := h.ragService.Chat(c.Request.Context(), identity, req.ChatID, req.Message)
	if err != nil {
		respondRAGError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{Reply: reply, History: history})
}

// respondRAGError 将问答流程的错误映射为对外的状态码与讯息，细节只进日志。
func respondRAGError(c *gin.Context, err error) {
	if errors.Is(err, llm.ErrQuotaExhausted) || errors.Is(err, embedding.ErrQuotaExhausted) {
		log.Errorf("API 額度已用盡: %v", err)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "AI 服務目前請求量過大，請稍後再試。API 免費額度已用盡。"})
		return
	}
	log.Errorf("處理 API 請求時發生未預期的錯誤: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "處理您的請求時發生內部錯誤"})
}
