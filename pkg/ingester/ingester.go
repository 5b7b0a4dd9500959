package ingester

import (
	"context"
	"fmt"
	"io"

	"pocket/pkg/chunker"
	"pocket/pkg/core"
	"pocket/pkg/storage"
	"pocket/pkg/types"
)

// ChunkThreshold 超过该大小的内容按 FastCDC 切块存储为 FileNode
const ChunkThreshold = 256 * 1024

// Result 描述一次写入的结果
type Result struct {
	Hash    types.Hash
	Size    int64
	Chunked bool // true 表示 Hash 指向 FileNode
}

// Link 返回指向该内容的 DAG 边
func (r Result) Link() core.Link {
	return LinkFor(r.Hash, r.Size)
}

// LinkFor 根据内容大小推断对象编码：大文件为 FileNode (DAG-CBOR)，小文件为 Raw
func LinkFor(hash types.Hash, size int64) core.Link {
	if size > ChunkThreshold {
		return core.NewLink(hash)
	}
	return core.NewRawLink(hash)
}

type Ingester struct {
	store   storage.Store
	chunker *chunker.Chunker
}

func NewIngester(store storage.Store) *Ingester {
	return &Ingester{
		store:   store,
		chunker: chunker.NewChunker(),
	}
}

// Ingest 存储一段文件内容并返回其 ID
func (ing *Ingester) Ingest(ctx context.Context, data []byte) (Result, error) {
	return ing.ingest(ctx, data, false)
}

// Hash 只计算 ID，不写入存储 (status / 未修改检测使用)
func (ing *Ingester) Hash(data []byte) (Result, error) {
	return ing.ingest(context.Background(), data, true)
}

// IngestFile 读取一个文件流并存储
func (ing *Ingester) IngestFile(ctx context.Context, reader io.Reader) (Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read file: %w", err)
	}
	return ing.Ingest(ctx, data)
}

func (ing *Ingester) ingest(ctx context.Context, data []byte, dryRun bool) (Result, error) {
	size := int64(len(data))

	// 1. 小文件：整体作为一个 Blob
	if size <= ChunkThreshold {
		blob := core.NewBlob(data)
		if !dryRun {
			if err := ing.store.Put(ctx, blob); err != nil {
				return Result{}, fmt.Errorf("failed to store blob: %w", err)
			}
		}
		return Result{Hash: blob.ID(), Size: size}, nil
	}

	// 2. 大文件：切分并逐块存储
	builder := core.NewFileNodeBuilder()
	start := 0
	for _, end := range ing.chunker.Cut(data) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		chunk := core.NewChunk(data[start:end])
		if !dryRun {
			if err := ing.store.Put(ctx, chunk); err != nil {
				return Result{}, fmt.Errorf("failed to store chunk: %w", err)
			}
		}
		builder.Add(chunk)
		start = end
	}

	// 3. FileNode 最后写入，保证它引用的 Chunk 都已落盘
	fileNode, err := builder.Build()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create file node: %w", err)
	}
	if !dryRun {
		if err := ing.store.Put(ctx, fileNode); err != nil {
			return Result{}, fmt.Errorf("failed to store file node: %w", err)
		}
	}

	return Result{Hash: fileNode.ID(), Size: size, Chunked: true}, nil
}
