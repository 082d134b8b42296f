package model

// ChatRequest 是 POST /chat 的请求体。
type ChatRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// ChatResponse 是 POST /chat 的成功响应。
// History 包含既有历史加上本轮新增的两条 Turn，由旧到新排列。
type ChatResponse struct {
	Reply   string `json:"reply"`
	History []Turn `json:"history"`
}

// GenerateRequest 是 POST /generate 的请求体。
type GenerateRequest struct {
	Message string `json:"message"`
}

// GenerateResponse 是 POST /generate 的成功响应。
type GenerateResponse struct {
	Reply string `json:"reply"`
}
