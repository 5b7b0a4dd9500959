// Package shove 把暂存区冻结为不可变的 Shove 对象。
package shove

import (
	"context"
	"strings"
	"time"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/objects"
	"pocket/pkg/pile"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

var (
	ErrNothingToShove = errs.InvalidState("shove.create", "nothing to shove, working tree clean")
	ErrEmptyMessage   = errs.InvalidState("shove.create", "shove message cannot be empty")
)

// Request 描述一次提交
type Request struct {
	Pile      *pile.Pile
	Base      treebuilder.Snapshot // Pile 所基于的树 (扁平形式)
	Parents   []types.Hash         // 第一个是当前 head；合并时第二个是来源 head
	Author    core.Author
	Message   string
	Timestamp int64 // 为 0 时使用当前时间
}

type Builder struct {
	store *objects.Store
	trees *treebuilder.Builder
}

func NewBuilder(store *objects.Store) *Builder {
	return &Builder{
		store: store,
		trees: treebuilder.NewBuilder(store),
	}
}

// Create 构建树与 Shove 并写入对象库，不移动任何 Timeline
func (b *Builder) Create(ctx context.Context, req Request) (*core.Shove, error) {
	const op = "shove.create"
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	// 1. 父节点必须已经存在 (DAG 由构造保证)
	for _, p := range req.Parents {
		ok, err := b.store.HasShove(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.ObjectNotFound(op, p)
		}
	}

	// 2. 叠加暂存区并折叠为 Merkle Tree
	snap := req.Base
	if req.Pile != nil {
		snap = req.Pile.Apply(req.Base)
	}
	treeID, err := b.trees.Build(ctx, snap)
	if err != nil {
		return nil, err
	}

	// 3. 拒绝空提交：单父节点且树没有变化 (根提交与合并提交除外)
	if len(req.Parents) == 1 {
		parent, err := b.store.GetShove(ctx, req.Parents[0])
		if err != nil {
			return nil, err
		}
		if parent.Tree() == treeID {
			return nil, ErrNothingToShove
		}
	}

	// 4. 创建并存储 Shove
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	s, err := core.NewShoveAt(treeID, req.Parents, req.Author, req.Message, ts)
	if err != nil {
		return nil, errs.IO(op, err)
	}
	if err := b.store.StoreShove(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot 读取某个 Shove 的扁平树，空 ID 得到空快照
func (b *Builder) Snapshot(ctx context.Context, id types.Hash) (treebuilder.Snapshot, error) {
	if id.IsZero() {
		return make(treebuilder.Snapshot), nil
	}
	s, err := b.store.GetShove(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.trees.Flatten(ctx, s.Tree())
}
