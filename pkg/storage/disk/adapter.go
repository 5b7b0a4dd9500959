package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pocket/pkg/core"
	"pocket/pkg/storage"
	"pocket/pkg/types"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: <worktree>/.pocket/objects
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回哈希对应的物理路径
// 策略：使用前 2 个字符作为子目录 (Sharding)
// Example: hash "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(hash types.Hash) string {
	h := string(hash)
	if len(h) < 2 {
		return filepath.Join(s.rootPath, h)
	}
	return filepath.Join(s.rootPath, h[:2], h[2:])
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	targetPath := s.layout(obj.ID())

	// 1. 幂等：已存在直接跳过
	if _, err := os.Stat(targetPath); err == nil {
		return nil
	}

	// 2. 原子写入：临时文件 + fsync + Rename
	// 崩溃时要么文件不存在，要么文件是完整的
	if err := SafeWrite(targetPath, obj.Bytes(), 0o444); err != nil {
		return fmt.Errorf("failed to write object %s: %w", obj.ID().Short(), err)
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(hash))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	_, err := os.Stat(s.layout(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExpandHash 扫描分片目录，找出唯一匹配前缀的对象
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	p := strings.ToLower(string(prefix))
	if len(p) < types.MinPrefixLen {
		return "", storage.ErrPrefixTooShort
	}

	shard := filepath.Join(s.rootPath, p[:2])
	entries, err := os.ReadDir(shard)
	if os.IsNotExist(err) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var found types.Hash
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "temp-") {
			continue
		}
		if !strings.HasPrefix(e.Name(), p[2:]) {
			continue
		}
		if found != "" {
			return "", storage.ErrAmbiguousHash
		}
		found = types.Hash(p[:2] + e.Name())
	}
	if found == "" {
		return "", storage.ErrNotFound
	}
	return found, nil
}
