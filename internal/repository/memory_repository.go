// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"laodong-rag-go/internal/model"
	"laodong-rag-go/pkg/log"
)

// ErrKeyNotFound 表示键在存储中不存在。
var ErrKeyNotFound = errors.New("key not found")

// KV 是对话记忆的底层键值存储抽象，便于替换底层实现（Redis、文件等）。
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryRepository 定义了对话记忆的操作接口。
// 同一 (userID, chatID) 键没有并发控制：并发写入按最后写入者生效。
type MemoryRepository interface {
	// Append 向对话记忆追加一条 Turn。
	Append(ctx context.Context, userID, chatID string, turn model.Turn) error
	// Read 按由旧到新的顺序返回最近 limit 条 Turn；limit <= 0 时返回全部。
	Read(ctx context.Context, userID, chatID string, limit int) ([]model.Turn, error)
}

type kvMemoryRepository struct {
	kv KV
}

// NewMemoryRepository 创建一个新的 MemoryRepository 实例。
func NewMemoryRepository(kv KV) MemoryRepository {
	return &kvMemoryRepository{kv: kv}
}

// memoryKey 由使用者识别与对话识别串接出确定性的存储键。
func memoryKey(userID, chatID string) string {
	return fmt.Sprintf("memory:%s_%s", userID, chatID)
}

func (r *kvMemoryRepository) Append(ctx context.Context, userID, chatID string, turn model.Turn) error {
	key := memoryKey(userID, chatID)
	history := r.load(ctx, key)
	history = append(history, turn)

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store conversation history: %w", err)
	}
	return nil
}

func (r *kvMemoryRepository) Read(ctx context.Context, userID, chatID string, limit int) ([]model.Turn, error) {
	history := r.load(ctx, memoryKey(userID, chatID))
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// load 读取并规整既有历史。读取或解析失败时按空历史处理：
// 宁可接受资料遗失，也不让整个请求失败。
func (r *kvMemoryRepository) load(ctx context.Context, key string) []model.Turn {
	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		log.Warnf("读取对话记忆失败，按空历史处理: key=%s, err=%v", key, err)
		return nil
	}
	return normalizeHistory(raw)
}

// normalizeHistory 将历史资料标准化为 []model.Turn。
// 允许来源是 {"role","message"} 物件，或旧版的 ["role","message"] 两元素
// 阵列；不符合任一形状的条目静默丢弃。
func normalizeHistory(raw string) []model.Turn {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warnf("对话记忆内容损坏，按空历史处理: err=%v", err)
		return nil
	}

	var turns []model.Turn
	for _, entry := range entries {
		var obj struct {
			Role    *string `json:"role"`
			Message *string `json:"message"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil && obj.Role != nil && obj.Message != nil {
			turns = append(turns, model.Turn{Role: *obj.Role, Message: *obj.Message})
			continue
		}

		var pair []interface{}
		if err := json.Unmarshal(entry, &pair); err == nil && len(pair) == 2 {
			turns = append(turns, model.Turn{
				Role:    fmt.Sprint(pair[0]),
				Message: fmt.Sprint(pair[1]),
			})
		}
	}
	return turns
}
