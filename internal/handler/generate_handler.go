package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laodong-rag-go/internal/model"
	"laodong-rag-go/internal/service"
)

// GenerateHandler 负责处理无状态问答请求。
type GenerateHandler struct {
	ragService service.RAGService
}

// NewGenerateHandler 创建一个新的 GenerateHandler 实例。
func NewGenerateHandler(ragService service.RAGService) *GenerateHandler {
	return &GenerateHandler{ragService: ragService}
}

// Generate 处理 POST /generate 请求。
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "請求格式錯誤，需要包含 'message' 欄位"})
		return
	}

	reply, err := h.ragService.Generate(c.Request.Context(), req.Message)
	if err != nil {
		respondRAGError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.GenerateResponse{Reply: reply})
}
