package storage

import (
	"context"
	"io"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/types"
)

var (
	ErrNotFound       = &errs.Error{Kind: errs.ErrNotFound, Msg: "object does not exist"}
	ErrAmbiguousHash  = &errs.Error{Kind: errs.ErrInvalidState, Msg: "ambiguous hash prefix"}
	ErrPrefixTooShort = &errs.Error{Kind: errs.ErrInvalidState, Msg: "hash prefix too short"}
)

// Store defines the interface for a content-addressed storage backend.
// Implementations: local disk (default), S3/MinIO, and a Redis-cached decorator.
type Store interface {
	// Put 将一个核心对象持久化。已存在的对象不会被重写。
	Put(ctx context.Context, obj core.Object) error

	// Get 根据 Hash 读取原始数据，不存在时返回 ErrNotFound
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash 将短哈希扩展为完整 Hash
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// ReadAll 读取对象的全部字节
func ReadAll(ctx context.Context, s Store, hash types.Hash) ([]byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
