package core

import "pocket/pkg/types"

// Blob 是一段原始字节：小文件的完整内容，或大文件的一个 Chunk。
// 它是 Merkle DAG 的叶子节点，ID 即内容的 SHA-256。
type Blob struct {
	kind ObjectType
	hash types.Hash
	data []byte
}

func NewBlob(data []byte) *Blob {
	return &Blob{kind: TypeBlob, hash: CalculateBlobHash(data), data: data}
}

func NewChunk(data []byte) *Blob {
	return &Blob{kind: TypeChunk, hash: CalculateBlobHash(data), data: data}
}

func (b *Blob) Type() ObjectType { return b.kind }
func (b *Blob) ID() types.Hash   { return b.hash }
func (b *Blob) Bytes() []byte    { return b.data }
func (b *Blob) Size() int64      { return int64(len(b.data)) }
