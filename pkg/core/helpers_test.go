package core

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"pocket/pkg/types"

	"github.com/stretchr/testify/require"
)

// mockHash 生成一个合法的 32 字节 Hex 字符串 (64字符长度)
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

var testAuthor = Author{Name: "tester", Email: "tester@example.com"}

// mustNewShove 创建 Shove，如果失败直接终止测试
func mustNewShove(t *testing.T, treeHash types.Hash, parents []types.Hash, msg string, ts int64) *Shove {
	t.Helper()
	s, err := NewShoveAt(treeHash, parents, testAuthor, msg, ts)
	require.NoError(t, err)
	return s
}
