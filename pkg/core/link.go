package core

import (
	"encoding/hex"
	"errors"
	"fmt"

	"pocket/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Link 代表 Merkle DAG 中的一条边。
// Go 层面保存 SHA-256 Hex 与目标编码 (Raw 或 DAG-CBOR)；
// CBOR 层面序列化为 Tag 42(0x00 + CIDv1 bytes)。
type Link struct {
	Hash  types.Hash
	Codec uint64
}

const linkTagNumber = 42

// NewLink 指向结构化对象 (tree, filenode, shove)
func NewLink(hash types.Hash) Link {
	return Link{Hash: hash, Codec: cid.DagCBOR}
}

// NewRawLink 指向原始字节对象 (blob, chunk)
func NewRawLink(hash types.Hash) Link {
	return Link{Hash: hash, Codec: cid.Raw}
}

// IsRaw 目标是否为原始字节
func (l Link) IsRaw() bool { return l.Codec == cid.Raw }

// CID 构造 CIDv1
func (l Link) CID() (cid.Cid, error) {
	digest, err := l.Hash.Bytes()
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid hash format in link: %w", err)
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	codec := l.Codec
	if codec == 0 {
		codec = cid.DagCBOR
	}
	return cid.NewCidV1(codec, mh), nil
}

// String 返回 base32 multibase 形式 (bafy...)，用于 cat 展示
func (l Link) String() string {
	c, err := l.CID()
	if err != nil {
		return string(l.Hash)
	}
	s, err := c.StringOfBase(multibase.Base32)
	if err != nil {
		return string(l.Hash)
	}
	return s
}

// MarshalCBOR 规范：Tag 42, Content = [0x00, cid bytes...]
func (l Link) MarshalCBOR() ([]byte, error) {
	c, err := l.CID()
	if err != nil {
		return nil, err
	}
	content := append([]byte{0x00}, c.Bytes()...)
	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: content,
	})
}

// UnmarshalCBOR 严格解析 Tag 42
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Number != linkTagNumber {
		return fmt.Errorf("expected tag 42 for Link, got %d", tag.Number)
	}

	raw, ok := tag.Content.([]byte)
	if !ok {
		return errors.New("link content must be byte string")
	}
	if len(raw) < 1 {
		return errors.New("invalid link: empty content")
	}
	if raw[0] != 0x00 {
		return errors.New("invalid link: missing 0x00 multibase prefix")
	}

	c, err := cid.Cast(raw[1:])
	if err != nil {
		return fmt.Errorf("invalid link cid: %w", err)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return fmt.Errorf("invalid link multihash: %w", err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return fmt.Errorf("unsupported link hash function: %s", decoded.Name)
	}

	l.Hash = types.Hash(hex.EncodeToString(decoded.Digest))
	l.Codec = c.Prefix().Codec
	return nil
}
