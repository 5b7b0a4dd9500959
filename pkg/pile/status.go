package pile

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"pocket/pkg/errs"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"

	"golang.org/x/sync/errgroup"
)

// StatCache 按 (size, mtime) 缓存文件内容 Hash，避免重复读取未变化的文件。
// 实现需要并发安全。
type StatCache interface {
	Lookup(ctx context.Context, path string, size, modTimeNs int64) (types.Hash, bool)
	Store(ctx context.Context, path string, size, modTimeNs int64, hash types.Hash) error
}

// Report 工作区状态
type Report struct {
	Staged    []Entry  // 暂存区记录
	Modified  []string // 工作区内容与暂存视图不同 (未暂存的修改)
	Deleted   []string // 暂存视图中有，但工作区中已不存在
	Untracked []string // 未被跟踪且未被忽略的文件
}

// Clean 工作区与 base 完全一致
func (r *Report) Clean() bool {
	return len(r.Staged) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0 && len(r.Untracked) == 0
}

// Status 比较工作区、暂存区与 base。cache 可以为 nil。
func (s *Stager) Status(ctx context.Context, p *Pile, base treebuilder.Snapshot, cache StatCache) (*Report, error) {
	view := p.Apply(base)

	files, err := s.walk(ctx, "", false)
	if err != nil {
		return nil, err
	}

	report := &Report{Staged: p.Entries()}
	present := make(map[string]bool, len(files))
	var tracked []string
	for _, f := range files {
		present[f] = true
		if _, ok := view[f]; ok {
			tracked = append(tracked, f)
		} else {
			report.Untracked = append(report.Untracked, f)
		}
	}

	// 1. 并行计算已跟踪文件的当前 Hash
	hashes := make([]types.Hash, len(tracked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rel := range tracked {
		g.Go(func() error {
			h, err := s.currentHash(gctx, rel, cache)
			if err != nil {
				return err
			}
			hashes[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, rel := range tracked {
		if hashes[i] != view[rel].Hash {
			report.Modified = append(report.Modified, rel)
		}
	}

	// 2. 跟踪但缺失的文件 (被忽略的路径也算：删除总是可见的)
	for _, rel := range view.Paths() {
		if present[rel] {
			continue
		}
		if _, err := os.Lstat(filepath.Join(s.root, filepath.FromSlash(rel))); err == nil {
			continue
		}
		report.Deleted = append(report.Deleted, rel)
	}

	slices.Sort(report.Untracked)
	return report, nil
}

// currentHash 读取 (或从缓存获取) 工作区文件的 Hash
func (s *Stager) currentHash(ctx context.Context, rel string, cache StatCache) (types.Hash, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return "", errs.PathIO("pile.status", rel, err)
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	if cache != nil {
		if h, ok := cache.Lookup(ctx, rel, size, mtime); ok {
			return h, nil
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", errs.PathIO("pile.status", rel, err)
	}
	h, err := s.store.HashBlob(data)
	if err != nil {
		return "", err
	}
	if cache != nil {
		// 缓存写入失败不影响结果
		_ = cache.Store(ctx, rel, size, mtime, h)
	}
	return h, nil
}
