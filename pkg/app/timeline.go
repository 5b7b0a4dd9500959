package app

import (
	"context"
	"fmt"

	"pocket/pkg/errs"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/types"
)

// TimelineInfo List 的一项
type TimelineInfo struct {
	meta.Timeline
	Active  bool
	Stashed bool // 有保存的暂存区
}

// CreateTimeline 新建 Timeline。from 为空时基于当前 head，否则可以是 Timeline 名称或 Shove ID。
func (r *Repository) CreateTimeline(ctx context.Context, name, from string) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	base, err := r.ResolveRev(ctx, from)
	if err != nil {
		return err
	}
	return r.mutate(ctx, opCreateTimeline, func(tx *meta.Repository) (string, error) {
		if err := r.refs.With(tx).Create(ctx, name, base); err != nil {
			return "", err
		}
		return fmt.Sprintf("create timeline %s at %s", name, shortOrEmpty(base)), nil
	})
}

// ActiveTimeline 当前 Timeline 的名称
func (r *Repository) ActiveTimeline(ctx context.Context) (string, error) {
	return r.refs.Active(ctx)
}

// ListTimelines 按名称排序
func (r *Repository) ListTimelines(ctx context.Context) ([]TimelineInfo, error) {
	active, err := r.refs.Active(ctx)
	if err != nil {
		return nil, err
	}
	tls, err := r.refs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineInfo, len(tls))
	for i, tl := range tls {
		stash, err := r.meta.ListPile(ctx, pile.StashSlot(tl.Name))
		if err != nil {
			return nil, errs.IO("app.list_timelines", err)
		}
		out[i] = TimelineInfo{Timeline: tl, Active: tl.Name == active, Stashed: len(stash) > 0}
	}
	return out, nil
}

// DeleteTimeline 删除 Timeline 指针 (及其保存的暂存区)，不删除任何 Shove
func (r *Repository) DeleteTimeline(ctx context.Context, name string) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return r.mutate(ctx, opDeleteTimeline, func(tx *meta.Repository) (string, error) {
		if err := r.refs.With(tx).Delete(ctx, name); err != nil {
			return "", err
		}
		if err := pile.Drop(ctx, tx, pile.StashSlot(name)); err != nil {
			return "", errs.IO("app.delete_timeline", err)
		}
		return "delete timeline " + name, nil
	})
}

// TrackRemote 记录 Timeline 的远程跟踪信息，remote 为空表示取消
func (r *Repository) TrackRemote(ctx context.Context, name, remote, remoteTimeline string) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return r.mutate(ctx, opTrackTimeline, func(tx *meta.Repository) (string, error) {
		if err := r.refs.With(tx).SetRemote(ctx, name, remote, remoteTimeline); err != nil {
			return "", err
		}
		if remote == "" {
			return "untrack " + name, nil
		}
		return fmt.Sprintf("track %s -> %s/%s", name, remote, remoteTimeline), nil
	})
}

// SwitchMode 暂存区非空时的处理方式
type SwitchMode int

const (
	SwitchNormal SwitchMode = iota // 暂存区非空时拒绝
	SwitchForce                    // 丢弃暂存区并覆盖本地改动
	SwitchStash                    // 暂存区随 Timeline 保存，切回时恢复
)

// Switch 切换到另一个 Timeline 并同步工作区
func (r *Repository) Switch(ctx context.Context, name string, mode SwitchMode) error {
	const op = "app.switch"
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.requireNoMerge(ctx, op); err != nil {
		return err
	}

	// 1. 当前与目标
	from, err := r.current(ctx)
	if err != nil {
		return err
	}
	to, err := r.refs.Get(ctx, name)
	if err != nil {
		return err
	}
	if from.Name == to.Name {
		return nil
	}

	fromHead := types.Hash(from.Head)
	p, err := r.loadPile(ctx, fromHead)
	if err != nil {
		return err
	}
	if !p.IsEmpty() && mode == SwitchNormal {
		return errs.InvalidState(op, "pile is not empty (shove, unpile, or switch with --stash / --force)")
	}

	// 2. 工作区视图：当前 head + 暂存区 -> 目标 head + 目标保存的暂存区
	fromBase, err := r.snapshot(ctx, fromHead)
	if err != nil {
		return err
	}
	toHead := types.Hash(to.Head)
	stashed, err := pile.Load(ctx, r.meta, pile.StashSlot(to.Name))
	if err != nil {
		return errs.IO(op, err)
	}
	if stashed.Base() != toHead {
		stashed = pile.New(toHead)
	}
	toBase, err := r.snapshot(ctx, toHead)
	if err != nil {
		return err
	}

	// 3. 同步工作区 (被改动的文件会在修改任何文件之前中止)
	report, err := r.exporter.Reconcile(ctx, p.Apply(fromBase), stashed.Apply(toBase), mode == SwitchForce)
	if err != nil {
		return err
	}
	r.Logger.Debug("worktree reconciled", "written", len(report.Written), "removed", len(report.Removed))

	// 4. 元数据
	return r.mutate(ctx, opSwitch, func(tx *meta.Repository) (string, error) {
		if mode == SwitchStash && !p.IsEmpty() {
			if err := p.Save(ctx, tx, pile.StashSlot(from.Name)); err != nil {
				return "", errs.IO(op, err)
			}
		}
		if err := pile.Drop(ctx, tx, pile.StashSlot(to.Name)); err != nil {
			return "", errs.IO(op, err)
		}
		if err := stashed.Save(ctx, tx, pile.ActiveSlot); err != nil {
			return "", errs.IO(op, err)
		}
		if err := r.refs.With(tx).SetActive(ctx, to.Name); err != nil {
			return "", err
		}
		return fmt.Sprintf("switch %s -> %s", from.Name, to.Name), nil
	})
}

func shortOrEmpty(h types.Hash) string {
	if h.IsZero() {
		return "(empty)"
	}
	return h.Short()
}
