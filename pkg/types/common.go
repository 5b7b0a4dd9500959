// pkg/types/common.go
package types

import "encoding/hex"

// Hash 代表对象的唯一标识符 (SHA-256 Hex String, 64 字符)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid 检查长度以及是否为合法的小写 Hex
func (h Hash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// Short 返回用于展示的 7 位短哈希
func (h Hash) Short() string {
	if len(h) <= 7 {
		return string(h)
	}
	return string(h[:7])
}

// Bytes 返回原始 32 字节摘要
func (h Hash) Bytes() ([]byte, error) {
	return hex.DecodeString(string(h))
}

// HashPrefix 是用户输入的短哈希 (至少 4 位)
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// MinPrefixLen 短哈希扩展所需的最小长度
const MinPrefixLen = 4
