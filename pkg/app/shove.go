package app

import (
	"context"
	"fmt"
	"strings"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/meta"
	"pocket/pkg/pile"
	"pocket/pkg/shove"
	"pocket/pkg/types"
)

// Shove 把暂存区提交为新的 Shove 并移动当前 Timeline
func (r *Repository) Shove(ctx context.Context, message string) (*core.Shove, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.requireNoMerge(ctx, "app.shove"); err != nil {
		return nil, err
	}

	// 1. 读取 head (及 CAS 版本号)、暂存区与 base 树
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
	var parents []types.Hash
	if !head.IsZero() {
		parents = []types.Hash{head}
	}

	// 2. 写入树与 Shove 对象
	s, err := r.shoves.Create(ctx, shove.Request{
		Pile:    p,
		Base:    base,
		Parents: parents,
		Author:  r.author(),
		Message: message,
	})
	if err != nil {
		return nil, err
	}

	// 3. 单个事务：移动指针、清空暂存区、建立索引
	err = r.mutate(ctx, opShove, func(tx *meta.Repository) (string, error) {
		if err := r.advance(ctx, tx, tl, s.ID()); err != nil {
			return "", err
		}
		return fmt.Sprintf("shove %s on %s: %s", s.ID().Short(), tl.Name, firstLine(message)), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// advance 在事务中移动 Timeline (CAS)、重置其暂存区并索引新 head
func (r *Repository) advance(ctx context.Context, tx *meta.Repository, tl *meta.Timeline, newHead types.Hash) error {
	if err := r.refs.With(tx).Advance(ctx, tl.Name, newHead, tl.Version); err != nil {
		return err
	}
	if err := pile.New(newHead).Save(ctx, tx, pile.ActiveSlot); err != nil {
		return errs.IO("app.advance", err)
	}
	s, err := r.objects.GetShove(ctx, newHead)
	if err != nil {
		return err
	}
	if err := tx.IndexShove(ctx, s); err != nil {
		return errs.IO("app.advance", err)
	}
	return nil
}

func (r *Repository) author() core.Author {
	return core.Author{Name: r.Config.User.Name, Email: r.Config.User.Email}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
