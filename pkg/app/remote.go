package app

import (
	"context"
	"fmt"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/merge"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/types"
)

// 远程同步由外部协作者负责传输，这里只提供导入/导出与 fast-forward 原语。

// ImportObject 导入一个序列化对象，其子对象必须已经导入
func (r *Repository) ImportObject(ctx context.Context, raw []byte) (types.Hash, core.ObjectType, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return "", "", err
	}
	defer release()

	id, kind, err := r.objects.ImportObject(ctx, raw)
	if err != nil {
		return "", kind, err
	}
	if kind == core.TypeShove {
		if err := r.indexShove(ctx, id); err != nil {
			return "", kind, err
		}
	}
	return id, kind, nil
}

// ImportShove 导入一个 Shove，其根目录与父节点必须已经存在
func (r *Repository) ImportShove(ctx context.Context, raw []byte) (*core.Shove, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := r.objects.ImportShove(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := r.meta.IndexShove(ctx, s); err != nil {
		return nil, errs.IO("app.import_shove", err)
	}
	return s, nil
}

func (r *Repository) indexShove(ctx context.Context, id types.Hash) error {
	s, err := r.objects.GetShove(ctx, id)
	if err != nil {
		return err
	}
	if err := r.meta.IndexShove(ctx, s); err != nil {
		return errs.IO("app.import_object", err)
	}
	return nil
}

// ExportObject 返回对象 (或 Shove) 的原始字节，供传输到另一个仓库
func (r *Repository) ExportObject(ctx context.Context, id types.Hash) ([]byte, error) {
	return r.objects.Raw(ctx, id)
}

// ExportShove 按导入所需的顺序列出一个 Shove 的全部对象：先树内容，最后是 Shove 本身
func (r *Repository) ExportShove(ctx context.Context, id types.Hash) ([]types.Hash, error) {
	s, err := r.objects.GetShove(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := r.objects.ExportTree(ctx, s.Tree())
	if err != nil {
		return nil, err
	}
	return append(order, id), nil
}

// FastForward 把 timeline 移动到 id。id 不是当前 head 的后代时返回 merge.ErrDiverged。
// timeline 是当前 Timeline 时同步工作区，且暂存区必须为空。
func (r *Repository) FastForward(ctx context.Context, timeline string, id types.Hash) error {
	const op = "app.fast_forward"
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tl, err := r.refs.Get(ctx, timeline)
	if err != nil {
		return err
	}
	head := types.Hash(tl.Head)
	if head == id {
		return nil
	}
	if ok, err := r.objects.HasShove(ctx, id); err != nil {
		return err
	} else if !ok {
		return errs.ObjectNotFound(op, id)
	}
	ok, err := r.history.IsAncestor(ctx, head, id)
	if err != nil {
		return err
	}
	if !ok {
		return merge.ErrDiverged
	}

	active, err := r.refs.Active(ctx)
	if err != nil {
		return err
	}
	isActive := active == tl.Name
	if isActive {
		if err := r.requireNoMerge(ctx, op); err != nil {
			return err
		}
		p, err := r.loadPile(ctx, head)
		if err != nil {
			return err
		}
		if !p.IsEmpty() {
			return errs.InvalidState(op, "pile is not empty")
		}
		from, err := r.snapshot(ctx, head)
		if err != nil {
			return err
		}
		to, err := r.snapshot(ctx, id)
		if err != nil {
			return err
		}
		if _, err := r.exporter.Reconcile(ctx, from, to, false); err != nil {
			return err
		}
	}

	return r.mutate(ctx, opFastForward, func(tx *meta.Repository) (string, error) {
		if isActive {
			if err := r.advance(ctx, tx, tl, id); err != nil {
				return "", err
			}
		} else {
			if err := r.refs.With(tx).Advance(ctx, tl.Name, id, tl.Version); err != nil {
				return "", err
			}
			// 该 Timeline 保存的暂存区基于旧 head，已失效
			if err := pile.Drop(ctx, tx, pile.StashSlot(tl.Name)); err != nil {
				return "", errs.IO(op, err)
			}
		}
		return fmt.Sprintf("fast-forward %s to %s", tl.Name, id.Short()), nil
	})
}
