package app

import (
	"context"

	"pocket/pkg/errs"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/types"
)

// Status 工作区状态
type Status struct {
	Timeline  string
	Head      types.Hash
	Merging   *meta.MergeState // 没有进行中的合并时为 nil
	Conflicts []meta.Conflict  // 仅未解决的冲突
	*pile.Report
}

// Status 会刷新文件状态缓存，因此同样需要持有仓库锁
func (r *Repository) Status(ctx context.Context) (*Status, error) {
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
	report, err := r.stager.Status(ctx, p, base, statCache{repo: r.meta})
	if err != nil {
		return nil, err
	}

	st := &Status{Timeline: tl.Name, Head: head, Report: report}
	if st.Merging, err = r.meta.GetMergeState(ctx); err != nil {
		return nil, errs.IO("app.status", err)
	}
	conflicts, err := r.meta.ListConflicts(ctx)
	if err != nil {
		return nil, errs.IO("app.status", err)
	}
	for _, c := range conflicts {
		if !c.Resolved {
			st.Conflicts = append(st.Conflicts, c)
		}
	}
	return st, nil
}
