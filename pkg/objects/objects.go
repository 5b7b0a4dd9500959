// Package objects 是对象库的门面：Blob / Tree / Shove 的读写、校验与导入导出。
// 普通对象与 Shove 分别存放在两个 storage.Store 中。
package objects

import (
	"context"
	"errors"
	"fmt"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/ingester"
	"pocket/pkg/storage"
	"pocket/pkg/types"
)

type Store struct {
	objects  storage.Store
	shoves   storage.Store
	ingester *ingester.Ingester
}

func New(objects, shoves storage.Store) *Store {
	return &Store{
		objects:  objects,
		shoves:   shoves,
		ingester: ingester.NewIngester(objects),
	}
}

// Backend 返回普通对象的底层存储
func (s *Store) Backend() storage.Store { return s.objects }

// StoreBlob 写入文件内容。相同内容只存一份。
func (s *Store) StoreBlob(ctx context.Context, data []byte) (ingester.Result, error) {
	res, err := s.ingester.Ingest(ctx, data)
	if err != nil {
		return ingester.Result{}, errs.IO("objects.store_blob", err)
	}
	return res, nil
}

// HashBlob 计算内容的 ID 但不写入
func (s *Store) HashBlob(data []byte) (types.Hash, error) {
	res, err := s.ingester.Hash(data)
	if err != nil {
		return "", errs.IO("objects.hash_blob", err)
	}
	return res.Hash, nil
}

// GetBlob 读取文件内容。size 是文件的原始大小：
// 超过 ChunkThreshold 的内容以 FileNode 存储，需要按 Chunk 顺序重组。
// 同一段字节既可能是小文件也可能是 FileNode，因此不能根据内容判断。
func (s *Store) GetBlob(ctx context.Context, id types.Hash, size int64) ([]byte, error) {
	return s.getBlob(ctx, id, size, false)
}

// GetBlobVerified 同 GetBlob，并重新计算每个对象的哈希
func (s *Store) GetBlobVerified(ctx context.Context, id types.Hash, size int64) ([]byte, error) {
	return s.getBlob(ctx, id, size, true)
}

// IsChunked 给定原始大小的文件是否以 FileNode 存储
func IsChunked(size int64) bool {
	return size > ingester.ChunkThreshold
}

func (s *Store) getBlob(ctx context.Context, id types.Hash, size int64, verify bool) ([]byte, error) {
	const op = "objects.get_blob"
	raw, err := s.read(ctx, s.objects, op, id, verify)
	if err != nil {
		return nil, err
	}
	if !IsChunked(size) {
		return raw, nil
	}

	node, err := core.DecodeFileNode(raw)
	if err != nil {
		return nil, errs.Corruption(op, id, err.Error())
	}
	if node.TotalSize != size {
		return nil, errs.Corruption(op, id, "filenode total size mismatch")
	}
	out := make([]byte, 0, node.TotalSize)
	for _, c := range node.Chunks {
		chunk, err := s.read(ctx, s.objects, op, c.Cid.Hash, verify)
		if err != nil {
			return nil, err
		}
		if int64(len(chunk)) != c.Size {
			return nil, errs.Corruption(op, c.Cid.Hash, "chunk size mismatch")
		}
		out = append(out, chunk...)
	}
	if int64(len(out)) != node.TotalSize {
		return nil, errs.Corruption(op, id, "filenode total size mismatch")
	}
	return out, nil
}

// StoreTree 写入一层目录
func (s *Store) StoreTree(ctx context.Context, entries []core.TreeEntry) (*core.Tree, error) {
	tree, err := core.NewTree(entries)
	if err != nil {
		return nil, errs.InvalidState("objects.store_tree", err.Error())
	}
	if err := s.objects.Put(ctx, tree); err != nil {
		return nil, errs.IO("objects.store_tree", err)
	}
	return tree, nil
}

// GetTree 读取并校验目录
func (s *Store) GetTree(ctx context.Context, id types.Hash) (*core.Tree, error) {
	const op = "objects.get_tree"
	raw, err := s.read(ctx, s.objects, op, id, true)
	if err != nil {
		return nil, err
	}
	tree, err := core.DecodeTree(raw)
	if err != nil {
		return nil, errs.Corruption(op, id, err.Error())
	}
	return tree, nil
}

// StoreShove 写入 Shove。调用方负责保证父节点与根目录已存在。
func (s *Store) StoreShove(ctx context.Context, shove *core.Shove) error {
	if err := s.shoves.Put(ctx, shove); err != nil {
		return errs.IO("objects.store_shove", err)
	}
	return nil
}

// GetShove 读取并校验 Shove
func (s *Store) GetShove(ctx context.Context, id types.Hash) (*core.Shove, error) {
	const op = "objects.get_shove"
	raw, err := s.read(ctx, s.shoves, op, id, true)
	if err != nil {
		return nil, err
	}
	shove, err := core.DecodeShove(raw)
	if err != nil {
		return nil, errs.Corruption(op, id, err.Error())
	}
	return shove, nil
}

func (s *Store) HasShove(ctx context.Context, id types.Hash) (bool, error) {
	ok, err := s.shoves.Has(ctx, id)
	if err != nil {
		return false, errs.IO("objects.has_shove", err)
	}
	return ok, nil
}

func (s *Store) HasObject(ctx context.Context, id types.Hash) (bool, error) {
	ok, err := s.objects.Has(ctx, id)
	if err != nil {
		return false, errs.IO("objects.has", err)
	}
	return ok, nil
}

// ExpandShove 将短哈希扩展为 Shove ID
func (s *Store) ExpandShove(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	return expand(ctx, s.shoves, "objects.expand_shove", prefix)
}

// ExpandObject 将短哈希扩展为对象 ID
func (s *Store) ExpandObject(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	return expand(ctx, s.objects, "objects.expand", prefix)
}

func expand(ctx context.Context, st storage.Store, op string, prefix types.HashPrefix) (types.Hash, error) {
	h, err := st.ExpandHash(ctx, prefix)
	if err == nil {
		return h, nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return "", &errs.Error{Kind: e.Kind, Op: op, Msg: fmt.Sprintf("%s: %s", e.Msg, prefix)}
	}
	return "", errs.IO(op, err)
}

// Raw 返回对象的原始字节 (先查普通对象，再查 Shove)，不做解析
func (s *Store) Raw(ctx context.Context, id types.Hash) ([]byte, error) {
	raw, err := s.read(ctx, s.objects, "objects.raw", id, false)
	if errors.Is(err, errs.ErrNotFound) {
		return s.read(ctx, s.shoves, "objects.raw", id, false)
	}
	return raw, err
}

// read 读取原始字节，并把存储层错误映射到错误分类
func (s *Store) read(ctx context.Context, st storage.Store, op string, id types.Hash, verify bool) ([]byte, error) {
	raw, err := storage.ReadAll(ctx, st, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.ObjectNotFound(op, id)
	}
	if err != nil {
		return nil, errs.IO(op, err)
	}
	if verify && core.CalculateBlobHash(raw) != id {
		return nil, errs.Corruption(op, id, "content hash mismatch")
	}
	return raw, nil
}
