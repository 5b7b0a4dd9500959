package app

import (
	"context"
	"errors"
	"path/filepath"

	"pocket/pkg/errs"
	"pocket/pkg/lock"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/refs"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

// 操作日志中的操作类型
const (
	opPile           = "pile"
	opUnpile         = "unpile"
	opShove          = "shove"
	opCreateTimeline = "timeline-create"
	opDeleteTimeline = "timeline-delete"
	opTrackTimeline  = "timeline-track"
	opSwitch         = "switch"
	opMerge          = "merge"
	opResolve        = "resolve"
	opFinishMerge    = "merge-finish"
	opAbortMerge     = "merge-abort"
	opFastForward    = "fast-forward"
)

// acquire 获取仓库排他锁，调用方必须 defer release
func (r *Repository) acquire(ctx context.Context) (func(), error) {
	l, err := lock.Acquire(ctx, filepath.Join(r.dataDir, lockFile), r.Config.Lock.Timeout)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			r.Logger.Error("failed to release repository lock", "error", err)
		}
	}, nil
}

// mutate 在单个元数据事务中执行 fn，并把前后状态写入操作日志。
// fn 返回本次操作的摘要。
func (r *Repository) mutate(ctx context.Context, kind string, fn func(tx *meta.Repository) (string, error)) error {
	err := r.meta.Transaction(ctx, func(tx *meta.Repository) error {
		before, err := tx.Snapshot(ctx)
		if err != nil {
			return errs.IO("app."+kind, err)
		}
		summary, err := fn(tx)
		if err != nil {
			return err
		}
		after, err := tx.Snapshot(ctx)
		if err != nil {
			return errs.IO("app."+kind, err)
		}
		if err := tx.RecordOperation(ctx, kind, summary, before, after); err != nil {
			return errs.IO("app."+kind, err)
		}
		r.Logger.Info("operation recorded", "kind", kind, "summary", summary)
		return nil
	})
	if err != nil {
		r.Logger.Warn("operation failed", "kind", kind, "error", err)
	}
	return err
}

// current 当前激活的 Timeline
func (r *Repository) current(ctx context.Context) (*meta.Timeline, error) {
	name, err := r.refs.Active(ctx)
	if err != nil {
		return nil, err
	}
	return r.refs.Get(ctx, name)
}

// snapshot 读取某个 Shove 的扁平树，空 ID 得到空快照
func (r *Repository) snapshot(ctx context.Context, id types.Hash) (treebuilder.Snapshot, error) {
	return r.shoves.Snapshot(ctx, id)
}

// loadPile 读取当前暂存区。base 与 head 不一致时 (首次使用或 head 被移动) 以 head 为准。
func (r *Repository) loadPile(ctx context.Context, head types.Hash) (*pile.Pile, error) {
	p, err := pile.Load(ctx, r.meta, pile.ActiveSlot)
	if err != nil {
		return nil, errs.IO("app.load_pile", err)
	}
	if p.Base() != head {
		if !p.IsEmpty() {
			r.Logger.Warn("pile base differs from head", "base", p.Base(), "head", head)
		}
		p.SetBase(head)
	}
	return p, nil
}

// requireNoMerge 合并进行中时拒绝操作
func (r *Repository) requireNoMerge(ctx context.Context, op string) error {
	ms, err := r.meta.GetMergeState(ctx)
	if err != nil {
		return errs.IO(op, err)
	}
	if ms != nil {
		return errs.InvalidState(op, "a merge is in progress (finish or abort it first)")
	}
	return nil
}

// stateView 计算某个元数据状态下工作区应有的内容：head 树叠加暂存区
func (r *Repository) stateView(ctx context.Context, st *meta.State) (treebuilder.Snapshot, error) {
	active := st.Setting(meta.KeyActiveTimeline)
	if active == "" {
		active = refs.DefaultTimeline
	}
	var head types.Hash
	for _, tl := range st.Timelines {
		if tl.Name == active {
			head = types.Hash(tl.Head)
		}
	}
	base, err := r.snapshot(ctx, head)
	if err != nil {
		return nil, err
	}
	var rows []meta.PileEntry
	for _, e := range st.Pile {
		if e.Slot == pile.ActiveSlot {
			rows = append(rows, e)
		}
	}
	return pile.FromRows(head, rows).Apply(base), nil
}

// ResolveRev 把 Timeline 名称或 (短) Shove ID 解析为 Shove ID
func (r *Repository) ResolveRev(ctx context.Context, rev string) (types.Hash, error) {
	if rev == "" || rev == "HEAD" {
		tl, err := r.current(ctx)
		if err != nil {
			return "", err
		}
		return types.Hash(tl.Head), nil
	}
	tl, err := r.refs.Get(ctx, rev)
	if err == nil {
		return types.Hash(tl.Head), nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}
	return r.objects.ExpandShove(ctx, types.HashPrefix(rev))
}

// statCache 基于元数据库的 pile.StatCache 实现
type statCache struct {
	repo *meta.Repository
}

func (c statCache) Lookup(ctx context.Context, path string, size, modTimeNs int64) (types.Hash, bool) {
	fs, err := c.repo.GetFileStat(ctx, path)
	if err != nil || fs == nil {
		return "", false
	}
	if fs.Size != size || fs.ModTimeNs != modTimeNs {
		return "", false
	}
	return types.Hash(fs.Hash), true
}

func (c statCache) Store(ctx context.Context, path string, size, modTimeNs int64, hash types.Hash) error {
	return c.repo.SaveFileStat(ctx, meta.FileStat{Path: path, Size: size, ModTimeNs: modTimeNs, Hash: string(hash)})
}
