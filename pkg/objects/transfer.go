package objects

import (
	"context"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/types"
)

// ImportObject 接收外部传来的序列化对象 (blob / chunk / filenode / tree / shove)。
// 对象的子节点必须先于对象本身导入，否则返回 NotFound。
func (s *Store) ImportObject(ctx context.Context, raw []byte) (types.Hash, core.ObjectType, error) {
	const op = "objects.import"

	kind := core.SniffType(raw)
	switch kind {
	case core.TypeShove:
		shove, err := s.ImportShove(ctx, raw)
		if err != nil {
			return "", kind, err
		}
		return shove.ID(), kind, nil

	case core.TypeTree:
		tree, err := core.DecodeTree(raw)
		if err != nil {
			return "", kind, errs.Corruption(op, core.CalculateBlobHash(raw), err.Error())
		}
		for _, e := range tree.Entries {
			if err := s.requireObject(ctx, op, e.Cid.Hash); err != nil {
				return "", kind, err
			}
		}
		if err := s.objects.Put(ctx, tree); err != nil {
			return "", kind, errs.IO(op, err)
		}
		return tree.ID(), kind, nil

	case core.TypeFileNode:
		node, err := core.DecodeFileNode(raw)
		if err != nil {
			return "", kind, errs.Corruption(op, core.CalculateBlobHash(raw), err.Error())
		}
		for _, c := range node.Chunks {
			if err := s.requireObject(ctx, op, c.Cid.Hash); err != nil {
				return "", kind, err
			}
		}
		if err := s.objects.Put(ctx, node); err != nil {
			return "", kind, errs.IO(op, err)
		}
		return node.ID(), kind, nil

	default:
		blob := core.NewBlob(raw)
		if err := s.objects.Put(ctx, blob); err != nil {
			return "", kind, errs.IO(op, err)
		}
		return blob.ID(), kind, nil
	}
}

// ImportShove 导入一个 Shove，它的根目录与所有父节点必须已经存在
func (s *Store) ImportShove(ctx context.Context, raw []byte) (*core.Shove, error) {
	const op = "objects.import_shove"

	shove, err := core.DecodeShove(raw)
	if err != nil {
		return nil, errs.Corruption(op, core.CalculateBlobHash(raw), err.Error())
	}
	if err := s.requireObject(ctx, op, shove.Tree()); err != nil {
		return nil, err
	}
	for _, p := range shove.ParentIDs() {
		ok, err := s.HasShove(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &errs.Error{Kind: errs.ErrNotFound, Op: op, ID: p, Msg: "parent shove missing"}
		}
	}
	if err := s.StoreShove(ctx, shove); err != nil {
		return nil, err
	}
	return shove, nil
}

// ExportTree 按子节点优先的顺序列出一棵树引用的全部对象 (含自身)。
// 按此顺序调用 ImportObject 可以在另一个仓库重建这棵树。
func (s *Store) ExportTree(ctx context.Context, root types.Hash) ([]types.Hash, error) {
	var order []types.Hash
	seen := make(map[types.Hash]bool)

	var visit func(id types.Hash, dir bool, size int64) error
	visit = func(id types.Hash, dir bool, size int64) error {
		if seen[id] {
			return nil
		}
		seen[id] = true

		if dir {
			tree, err := s.GetTree(ctx, id)
			if err != nil {
				return err
			}
			for _, e := range tree.Entries {
				if err := visit(e.Cid.Hash, e.Type == core.EntryDir, e.Size); err != nil {
					return err
				}
			}
		} else if IsChunked(size) {
			raw, err := s.read(ctx, s.objects, "objects.export", id, false)
			if err != nil {
				return err
			}
			node, err := core.DecodeFileNode(raw)
			if err != nil {
				return errs.Corruption("objects.export", id, err.Error())
			}
			for _, c := range node.Chunks {
				if !seen[c.Cid.Hash] {
					seen[c.Cid.Hash] = true
					order = append(order, c.Cid.Hash)
				}
			}
		} else if err := s.requireObject(ctx, "objects.export", id); err != nil {
			return err
		}
		order = append(order, id)
		return nil
	}

	if err := visit(root, true, 0); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) requireObject(ctx context.Context, op string, id types.Hash) error {
	ok, err := s.HasObject(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ObjectNotFound(op, id)
	}
	return nil
}
