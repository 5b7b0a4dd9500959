package app

import (
	"context"
	"fmt"
	"strings"

	"pocket/pkg/errs"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

// Pile 暂存指定的文件或目录
func (r *Repository) Pile(ctx context.Context, paths []string, force bool) (*pile.Result, error) {
	return r.stage(ctx, func(p *pile.Pile, base treebuilder.Snapshot) (*pile.Result, error) {
		return r.stager.AddPaths(ctx, p, base, paths, force)
	})
}

// PileAll 暂存工作区的全部变更
func (r *Repository) PileAll(ctx context.Context, force bool) (*pile.Result, error) {
	return r.stage(ctx, func(p *pile.Pile, base treebuilder.Snapshot) (*pile.Result, error) {
		return r.stager.AddAll(ctx, p, base, force)
	})
}

// PilePattern 暂存匹配 glob 的文件
func (r *Repository) PilePattern(ctx context.Context, pattern string, force bool) (*pile.Result, error) {
	return r.stage(ctx, func(p *pile.Pile, base treebuilder.Snapshot) (*pile.Result, error) {
		return r.stager.AddPattern(ctx, p, base, pattern, force)
	})
}

func (r *Repository) stage(ctx context.Context, fn func(*pile.Pile, treebuilder.Snapshot) (*pile.Result, error)) (*pile.Result, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	tl, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	head := types.Hash(tl.Head)
	p, err := r.loadPile(ctx, head)
	if err != nil {
		return nil, err
	}
	base, err := r.snapshot(ctx, head)
	if err != nil {
		return nil, err
	}

	// 1. 写入对象 (事务之外，对象只增不删)
	res, err := fn(p, base)
	if err != nil {
		return nil, err
	}
	if len(res.Staged) == 0 && len(res.Unstaged) == 0 {
		return res, nil
	}

	// 2. 持久化暂存区
	err = r.mutate(ctx, opPile, func(tx *meta.Repository) (string, error) {
		if err := p.Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO("app.pile", err)
		}
		return fmt.Sprintf("pile %d change(s)", len(res.Staged)+len(res.Unstaged)), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unpile 取消暂存指定路径 (目录会取消其下全部条目)，返回被移除的路径
func (r *Repository) Unpile(ctx context.Context, paths []string) ([]string, error) {
	return r.unstage(ctx, func(p *pile.Pile) ([]string, error) {
		var removed []string
		for _, raw := range paths {
			target := pile.CleanPath(raw)
			matched := false
			for _, e := range p.Entries() {
				if e.Path == target || strings.HasPrefix(e.Path, target+"/") || target == "." {
					p.Remove(e.Path)
					removed = append(removed, e.Path)
					matched = true
				}
			}
			if !matched {
				return nil, errs.PathNotFound("app.unpile", target)
			}
		}
		return removed, nil
	})
}

// UnpileAll 清空暂存区
func (r *Repository) UnpileAll(ctx context.Context) ([]string, error) {
	return r.unstage(ctx, func(p *pile.Pile) ([]string, error) {
		var removed []string
		for _, e := range p.Entries() {
			removed = append(removed, e.Path)
		}
		p.Reset()
		return removed, nil
	})
}

func (r *Repository) unstage(ctx context.Context, fn func(*pile.Pile) ([]string, error)) ([]string, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	tl, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.loadPile(ctx, types.Hash(tl.Head))
	if err != nil {
		return nil, err
	}
	removed, err := fn(p)
	if err != nil || len(removed) == 0 {
		return removed, err
	}

	err = r.mutate(ctx, opUnpile, func(tx *meta.Repository) (string, error) {
		if err := p.Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO("app.unpile", err)
		}
		return fmt.Sprintf("unpile %d path(s)", len(removed)), nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Diff 暂存区相对于 head 的变更
func (r *Repository) Diff(ctx context.Context) ([]pile.Change, error) {
	tl, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.loadPile(ctx, types.Hash(tl.Head))
	if err != nil {
		return nil, err
	}
	var out []pile.Change
	for c := range p.DiffAgainstHead() {
		out = append(out, c)
	}
	return out, nil
}
