// Package model 包含了应用的数据模型定义。
package model

// Turn 的 role 取值。
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Turn 代表对话中的一条消息，写入后不可变更。
type Turn struct {
	Role    string `json:"role"` // "user" 或 "bot"
	Message string `json:"message"`
}
