package app

import (
	"context"
	"fmt"
	"time"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/merge"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/shove"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

// MergeOptions 合并参数
type MergeOptions struct {
	Mode     merge.Mode
	Strategy string // three-way (默认) / ours / theirs
	Message  string // 为空时使用 "Merge <source> into <target>"
}

// MergeResult 合并结果。有冲突时 Shove 为空，仓库进入合并状态。
type MergeResult struct {
	Kind      merge.Kind
	Head      types.Hash // 合并后当前 Timeline 的 head
	Shove     *core.Shove
	Conflicts []merge.Conflict
}

// Merge 把 source (Timeline 名称或 Shove ID) 合并进当前 Timeline。
// 出现冲突时同时返回结果与 *errs.ConflictError。
func (r *Repository) Merge(ctx context.Context, source string, opts MergeOptions) (*MergeResult, error) {
	const op = "app.merge"
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.requireNoMerge(ctx, op); err != nil {
		return nil, err
	}
	resolver, err := merge.ParseStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}

	// 1. 双方 head；暂存区必须为空
	tl, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	ours := types.Hash(tl.Head)
	theirs, err := r.ResolveRev(ctx, source)
	if err != nil {
		return nil, err
	}
	if theirs.IsZero() {
		return nil, errs.InvalidState(op, fmt.Sprintf("%s has no shoves to merge", source))
	}
	p, err := r.loadPile(ctx, ours)
	if err != nil {
		return nil, err
	}
	if !p.IsEmpty() {
		return nil, errs.InvalidState(op, "pile is not empty (shove or unpile first)")
	}

	// 2. 计算合并计划 (只读)
	plan, err := r.merger.Plan(ctx, ours, theirs, opts.Mode, resolver)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("merge planned", "kind", plan.Kind, "base", plan.Base, "conflicts", len(plan.Conflicts))
	res := &MergeResult{Kind: plan.Kind, Head: ours, Conflicts: plan.Conflicts}
	if plan.Kind == merge.UpToDate {
		return res, nil
	}

	oursSnap, err := r.snapshot(ctx, ours)
	if err != nil {
		return nil, err
	}

	// 3. fast-forward：同步工作区后移动指针
	if plan.Kind == merge.FastForward {
		theirsSnap, err := r.snapshot(ctx, theirs)
		if err != nil {
			return nil, err
		}
		if _, err := r.exporter.Reconcile(ctx, oursSnap, theirsSnap, false); err != nil {
			return nil, err
		}
		err = r.mutate(ctx, opMerge, func(tx *meta.Repository) (string, error) {
			if err := r.advance(ctx, tx, tl, theirs); err != nil {
				return "", err
			}
			return fmt.Sprintf("fast-forward %s to %s", tl.Name, theirs.Short()), nil
		})
		if err != nil {
			return nil, err
		}
		res.Head = theirs
		return res, nil
	}

	// 4. 三方合并：工作区先写成合并结果 (冲突路径保留 ours)
	if _, err := r.exporter.Reconcile(ctx, oursSnap, plan.Result, false); err != nil {
		return nil, err
	}
	message := opts.Message
	if message == "" {
		message = merge.Message(source, tl.Name)
	}

	if len(plan.Conflicts) == 0 {
		s, err := r.shoves.Create(ctx, shove.Request{
			Base:    plan.Result,
			Parents: []types.Hash{ours, theirs},
			Author:  r.author(),
			Message: message,
		})
		if err != nil {
			return nil, err
		}
		err = r.mutate(ctx, opMerge, func(tx *meta.Repository) (string, error) {
			if err := r.advance(ctx, tx, tl, s.ID()); err != nil {
				return "", err
			}
			return fmt.Sprintf("merge %s into %s: %s", source, tl.Name, s.ID().Short()), nil
		})
		if err != nil {
			return nil, err
		}
		res.Head = s.ID()
		res.Shove = s
		return res, nil
	}

	// 5. 有冲突：非冲突部分进入暂存区，记录合并状态
	p.StageSnapshot(oursSnap, plan.Result)
	paths := make([]string, len(plan.Conflicts))
	rows := make([]meta.Conflict, len(plan.Conflicts))
	for i, c := range plan.Conflicts {
		paths[i] = c.Path
		rows[i] = meta.Conflict{Path: c.Path, Base: string(c.Base), Ours: string(c.Ours), Theirs: string(c.Theirs)}
	}
	err = r.mutate(ctx, opMerge, func(tx *meta.Repository) (string, error) {
		if err := p.Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO(op, err)
		}
		ms := meta.MergeState{
			Source:     source,
			Target:     tl.Name,
			SourceHead: string(theirs),
			OursHead:   string(ours),
			BaseHead:   string(plan.Base),
			Message:    message,
			StartedAt:  time.Now(),
		}
		if err := tx.SaveMergeState(ctx, ms, rows); err != nil {
			return "", errs.IO(op, err)
		}
		return fmt.Sprintf("merge %s into %s: %d conflict(s)", source, tl.Name, len(rows)), nil
	})
	if err != nil {
		return nil, err
	}
	return res, errs.NewConflictError(op, paths)
}

// mergeState 读取进行中的合并，没有时返回 InvalidState
func (r *Repository) mergeState(ctx context.Context, op string) (*meta.MergeState, error) {
	ms, err := r.meta.GetMergeState(ctx)
	if err != nil {
		return nil, errs.IO(op, err)
	}
	if ms == nil {
		return nil, errs.InvalidState(op, "no merge in progress")
	}
	return ms, nil
}

// Resolve 为一个冲突路径指定最终内容，同时更新工作区与暂存区
func (r *Repository) Resolve(ctx context.Context, path string, res merge.Resolution) error {
	const op = "app.resolve"
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ms, err := r.mergeState(ctx, op)
	if err != nil {
		return err
	}
	path = pile.CleanPath(path)
	c, err := r.meta.GetConflict(ctx, path)
	if err != nil {
		return errs.IO(op, err)
	}
	if c == nil {
		return errs.PathNotFound(op, path)
	}

	// 1. 解析最终内容
	ours := types.Hash(ms.OursHead)
	oursSnap, err := r.snapshot(ctx, ours)
	if err != nil {
		return err
	}
	var ref *treebuilder.FileRef
	switch res.Kind {
	case merge.UseOurs:
		ref = lookupRef(oursSnap, path)
	case merge.UseTheirs:
		theirsSnap, err := r.snapshot(ctx, types.Hash(ms.SourceHead))
		if err != nil {
			return err
		}
		ref = lookupRef(theirsSnap, path)
	case merge.UseContent:
		stored, err := r.objects.StoreBlob(ctx, res.Content)
		if err != nil {
			return err
		}
		ref = &treebuilder.FileRef{Hash: stored.Hash, Size: stored.Size}
	case merge.UseDelete:
	default:
		return errs.InvalidState(op, fmt.Sprintf("unknown resolution %q", res.Kind))
	}

	// 2. 工作区
	if err := r.exporter.Checkout(ctx, path, ref); err != nil {
		return err
	}

	// 3. 暂存区 + 冲突记录
	p, err := r.loadPile(ctx, ours)
	if err != nil {
		return err
	}
	p.StagePath(oursSnap, path, ref)
	return r.mutate(ctx, opResolve, func(tx *meta.Repository) (string, error) {
		if err := p.Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO(op, err)
		}
		c.Resolved = true
		c.Resolution = string(res.Kind)
		if err := tx.SaveConflict(ctx, *c); err != nil {
			return "", errs.IO(op, err)
		}
		return fmt.Sprintf("resolve %s with %s", path, res.Kind), nil
	})
}

// FinishMerge 所有冲突解决后生成双亲 Shove。message 为空时使用合并开始时的信息。
func (r *Repository) FinishMerge(ctx context.Context, message string) (*core.Shove, error) {
	const op = "app.finish_merge"
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ms, err := r.mergeState(ctx, op)
	if err != nil {
		return nil, err
	}
	conflicts, err := r.meta.ListConflicts(ctx)
	if err != nil {
		return nil, errs.IO(op, err)
	}
	var pending []string
	for _, c := range conflicts {
		if !c.Resolved {
			pending = append(pending, c.Path)
		}
	}
	if len(pending) > 0 {
		return nil, errs.NewConflictError(op, pending)
	}

	tl, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	ours := types.Hash(ms.OursHead)
	if tl.Name != ms.Target || types.Hash(tl.Head) != ours {
		return nil, errs.InvalidState(op, fmt.Sprintf("timeline %s moved since the merge started", ms.Target))
	}
	p, err := r.loadPile(ctx, ours)
	if err != nil {
		return nil, err
	}
	oursSnap, err := r.snapshot(ctx, ours)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = ms.Message
	}
	s, err := r.shoves.Create(ctx, shove.Request{
		Pile:    p,
		Base:    oursSnap,
		Parents: []types.Hash{ours, types.Hash(ms.SourceHead)},
		Author:  r.author(),
		Message: message,
	})
	if err != nil {
		return nil, err
	}

	err = r.mutate(ctx, opFinishMerge, func(tx *meta.Repository) (string, error) {
		if err := r.advance(ctx, tx, tl, s.ID()); err != nil {
			return "", err
		}
		if err := tx.ClearMergeState(ctx); err != nil {
			return "", errs.IO(op, err)
		}
		return fmt.Sprintf("finish merge %s into %s: %s", ms.Source, ms.Target, s.ID().Short()), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AbortMerge 放弃合并，工作区与暂存区回到合并之前
func (r *Repository) AbortMerge(ctx context.Context) error {
	const op = "app.abort_merge"
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ms, err := r.mergeState(ctx, op)
	if err != nil {
		return err
	}
	ours := types.Hash(ms.OursHead)
	p, err := r.loadPile(ctx, ours)
	if err != nil {
		return err
	}
	oursSnap, err := r.snapshot(ctx, ours)
	if err != nil {
		return err
	}
	if _, err := r.exporter.Reconcile(ctx, p.Apply(oursSnap), oursSnap, true); err != nil {
		return err
	}
	return r.mutate(ctx, opAbortMerge, func(tx *meta.Repository) (string, error) {
		if err := tx.ClearMergeState(ctx); err != nil {
			return "", errs.IO(op, err)
		}
		if err := pile.New(ours).Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO(op, err)
		}
		return fmt.Sprintf("abort merge %s into %s", ms.Source, ms.Target), nil
	})
}

func lookupRef(snap treebuilder.Snapshot, path string) *treebuilder.FileRef {
	ref, ok := snap[path]
	if !ok {
		return nil
	}
	return &ref
}
