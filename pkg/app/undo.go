package app

import (
	"context"

	"pocket/pkg/errs"
	"pocket/pkg/meta"
)

// ErrNothingToUndo / ErrNothingToRedo 操作日志为空
var (
	ErrNothingToUndo = errs.InvalidState("app.undo", "nothing to undo")
	ErrNothingToRedo = errs.InvalidState("app.redo", "nothing to redo")
)

// Undo 撤销最近一次操作：元数据回到操作前的快照，工作区同步到对应视图。
// 返回被撤销的操作。
func (r *Repository) Undo(ctx context.Context) (*meta.Operation, error) {
	return r.replay(ctx, "app.undo", true)
}

// Redo 重做最近一次被撤销的操作
func (r *Repository) Redo(ctx context.Context) (*meta.Operation, error) {
	return r.replay(ctx, "app.redo", false)
}

func (r *Repository) replay(ctx context.Context, op string, undo bool) (*meta.Operation, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. 找到目标操作与要恢复的状态
	var rec *meta.Operation
	if undo {
		rec, err = r.meta.LastOperation(ctx)
	} else {
		rec, err = r.meta.NextRedo(ctx)
	}
	if err != nil {
		return nil, errs.IO(op, err)
	}
	if rec == nil {
		if undo {
			return nil, ErrNothingToUndo
		}
		return nil, ErrNothingToRedo
	}
	raw := rec.After
	if undo {
		raw = rec.Before
	}
	target, err := meta.DecodeState(raw)
	if err != nil {
		return nil, errs.Corruption(op, "", err.Error())
	}

	// 2. 工作区：暂存类操作不改动工作区文件
	if rec.Kind != opPile && rec.Kind != opUnpile {
		current, err := r.meta.Snapshot(ctx)
		if err != nil {
			return nil, errs.IO(op, err)
		}
		from, err := r.stateView(ctx, current)
		if err != nil {
			return nil, err
		}
		to, err := r.stateView(ctx, target)
		if err != nil {
			return nil, err
		}
		if _, err := r.exporter.Reconcile(ctx, from, to, false); err != nil {
			return nil, err
		}
	}

	// 3. 元数据
	err = r.meta.Transaction(ctx, func(tx *meta.Repository) error {
		if err := tx.Restore(ctx, target); err != nil {
			return err
		}
		return tx.MarkUndone(ctx, rec.ID, undo)
	})
	if err != nil {
		return nil, errs.IO(op, err)
	}
	r.Logger.Info("operation replayed", "undo", undo, "kind", rec.Kind, "summary", rec.Summary)
	return rec, nil
}
