package model

// KnowledgeDocument 代表知识库中的一篇文档。
// 文档由更新任务整体建立与替换，不做部分更新。
type KnowledgeDocument struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"` // 资料来源 URL
}
