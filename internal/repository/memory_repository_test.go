package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laodong-rag-go/internal/model"
)

// mapKV 是测试用的内存键值存储。
type mapKV struct {
	data map[string]string
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string]string)}
}

func (m *mapKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *mapKV) Set(_ context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func TestMemoryRepository_AppendAndRead(t *testing.T) {
	repo := NewMemoryRepository(newMapKV())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "u1", "c1", model.Turn{Role: model.RoleUser, Message: "勞保怎麼申請"}))
	require.NoError(t, repo.Append(ctx, "u1", "c1", model.Turn{Role: model.RoleBot, Message: "請洽勞保局"}))

	history, err := repo.Read(ctx, "u1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "勞保怎麼申請", history[0].Message)
	assert.Equal(t, model.RoleBot, history[1].Role)
}

func TestMemoryRepository_KeysAreIsolated(t *testing.T) {
	repo := NewMemoryRepository(newMapKV())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "u1", "c1", model.Turn{Role: model.RoleUser, Message: "a"}))
	require.NoError(t, repo.Append(ctx, "u1", "c2", model.Turn{Role: model.RoleUser, Message: "b"}))
	require.NoError(t, repo.Append(ctx, "u2", "c1", model.Turn{Role: model.RoleUser, Message: "c"}))

	h, err := repo.Read(ctx, "u1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "a", h[0].Message)
}

func TestMemoryRepository_ReadLimit(t *testing.T) {
	repo := NewMemoryRepository(newMapKV())
	ctx := context.Background()

	messages := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, msg := range messages {
		require.NoError(t, repo.Append(ctx, "u1", "c1", model.Turn{Role: model.RoleUser, Message: msg}))
	}

	// limit 小于总数时取最近 limit 条，由旧到新
	h, err := repo.Read(ctx, "u1", "c1", 3)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, "m3", h[0].Message)
	assert.Equal(t, "m5", h[2].Message)

	// limit 大于总数时返回全部
	h, err = repo.Read(ctx, "u1", "c1", 100)
	require.NoError(t, err)
	assert.Len(t, h, 5)
}

func TestMemoryRepository_ReadEmpty(t *testing.T) {
	repo := NewMemoryRepository(newMapKV())

	h, err := repo.Read(context.Background(), "nobody", "nothing", 20)
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestMemoryRepository_NormalizesLegacyPairs(t *testing.T) {
	kv := newMapKV()
	kv.data["memory:u1_c1"] = `[["user","舊格式問題"],{"role":"bot","message":"新格式回覆"}]`
	repo := NewMemoryRepository(kv)

	h, err := repo.Read(context.Background(), "u1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, model.Turn{Role: "user", Message: "舊格式問題"}, h[0])
	assert.Equal(t, model.Turn{Role: "bot", Message: "新格式回覆"}, h[1])
}

func TestMemoryRepository_DropsMalformedEntries(t *testing.T) {
	kv := newMapKV()
	kv.data["memory:u1_c1"] = `[{"role":"user","message":"ok"},{"role":"user"},["only-one"],42]`
	repo := NewMemoryRepository(kv)

	h, err := repo.Read(context.Background(), "u1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "ok", h[0].Message)
}

func TestMemoryRepository_CorruptValueTreatedAsEmpty(t *testing.T) {
	kv := newMapKV()
	kv.data["memory:u1_c1"] = `not json at all`
	repo := NewMemoryRepository(kv)
	ctx := context.Background()

	h, err := repo.Read(ctx, "u1", "c1", 0)
	require.NoError(t, err)
	assert.Empty(t, h)

	// 损坏的历史被覆盖而不是让写入失败
	require.NoError(t, repo.Append(ctx, "u1", "c1", model.Turn{Role: model.RoleUser, Message: "fresh"}))
	h, err = repo.Read(ctx, "u1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "fresh", h[0].Message)
}
