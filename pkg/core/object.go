package core

import "pocket/pkg/types"

// ObjectType 定义了 Pocket 对象库中的对象类型
type ObjectType string

const (
	TypeBlob     ObjectType = "blob"     // 小文件的完整内容
	TypeChunk    ObjectType = "chunk"    // 大文件 FastCDC 切出的数据块
	TypeFileNode ObjectType = "filenode" // 大文件索引 (有序 Chunk 列表)
	TypeTree     ObjectType = "tree"     // 单层目录
	TypeShove    ObjectType = "shove"    // 版本快照
)

// Object 是所有 Merkle DAG 节点的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的哈希值
	ID() types.Hash

	// Bytes 返回对象的序列化数据 (用于存储)
	Bytes() []byte
}

// typeProbe 只解出结构化对象公共的 "t" 字段
type typeProbe struct {
	TypeVal ObjectType `cbor:"t"`
}

// SniffType 根据序列化数据判断对象类型。
// 无法识别为结构化对象的数据一律视为 Blob。
func SniffType(data []byte) ObjectType {
	var p typeProbe
	if err := dm.Unmarshal(data, &p); err != nil {
		return TypeBlob
	}
	switch p.TypeVal {
	case TypeFileNode, TypeTree, TypeShove:
		return p.TypeVal
	default:
		return TypeBlob
	}
}
