package core

import (
	"fmt"
	"time"

	"pocket/pkg/types"
)

// Author 作者身份
type Author struct {
	Name  string `cbor:"n"`
	Email string `cbor:"e"`
}

func (a Author) String() string {
	if a.Email == "" {
		return a.Name
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Shove 是一次不可变的版本快照。
// Parents: 0 个为根，1 个为普通提交，2 个及以上为合并。
type Shove struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal ObjectType `cbor:"t"`

	TreeCid Link   `cbor:"th"`
	Parents []Link `cbor:"p"`

	Author  Author `cbor:"a"`
	Message string `cbor:"m"`

	Timestamp int64 `cbor:"ts"`
}

func NewShove(treeHash types.Hash, parents []types.Hash, author Author, msg string) (*Shove, error) {
	return NewShoveAt(treeHash, parents, author, msg, time.Now().Unix())
}

// NewShoveAt 使用指定的 Unix 时间戳创建 Shove
func NewShoveAt(treeHash types.Hash, parents []types.Hash, author Author, msg string, ts int64) (*Shove, error) {
	parentLinks := make([]Link, len(parents))
	for i, p := range parents {
		parentLinks[i] = NewLink(p)
	}

	s := &Shove{
		TypeVal:   TypeShove,
		TreeCid:   NewLink(treeHash),
		Parents:   parentLinks,
		Author:    author,
		Message:   msg,
		Timestamp: ts,
	}

	h, b, err := CalculateHash(s)
	if err != nil {
		return nil, err
	}
	s.hash = h
	s.rawBytes = b
	return s, nil
}

// DecodeShove 从存储的字节还原 Shove
func DecodeShove(data []byte) (*Shove, error) {
	var s Shove
	if err := DecodeObject(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode shove: %w", err)
	}
	if s.TypeVal != TypeShove {
		return nil, fmt.Errorf("object is %q, not a shove", s.TypeVal)
	}
	s.hash = CalculateBlobHash(data)
	s.rawBytes = data
	return &s, nil
}

// ParentIDs 返回父节点 ID 列表 (保持顺序)
func (s *Shove) ParentIDs() []types.Hash {
	ids := make([]types.Hash, len(s.Parents))
	for i, p := range s.Parents {
		ids[i] = p.Hash
	}
	return ids
}

func (s *Shove) Tree() types.Hash { return s.TreeCid.Hash }
func (s *Shove) IsMerge() bool    { return len(s.Parents) > 1 }
func (s *Shove) IsRoot() bool     { return len(s.Parents) == 0 }

func (s *Shove) Type() ObjectType { return TypeShove }
func (s *Shove) ID() types.Hash   { return s.hash }
func (s *Shove) Bytes() []byte    { return s.rawBytes }
