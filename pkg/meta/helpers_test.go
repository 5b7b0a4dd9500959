package meta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"pocket/pkg/core"
	"pocket/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// setupTestRepo 构建隔离的内存数据库
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(AllModels()...))
	t.Cleanup(func() { _ = metaDB.Close() })

	return NewRepository(metaDB)
}

// mustNewShove 创建 Shove，如果失败直接终止测试
func mustNewShove(t *testing.T, treeHash types.Hash, parents []types.Hash, author, msg string, ts int64) *core.Shove {
	t.Helper()
	s, err := core.NewShoveAt(treeHash, parents, core.Author{Name: author, Email: author + "@example.com"}, msg, ts)
	require.NoError(t, err)
	return s
}

func mustIndexShove(t *testing.T, repo *Repository, s *core.Shove, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.IndexShove(context.Background(), s), msgAndArgs...)
}

func mustCreateTimeline(t *testing.T, repo *Repository, name string, head types.Hash) {
	t.Helper()
	require.NoError(t, repo.CreateTimeline(context.Background(), name, head))
}
