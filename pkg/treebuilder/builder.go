package treebuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/ingester"
	"pocket/pkg/objects"
	"pocket/pkg/types"
)

// FileRef 一个文件在快照中的内容引用
type FileRef struct {
	Hash types.Hash
	Size int64
}

// Snapshot 是一棵目录树的扁平视图：相对路径 ("a/b.txt") -> 文件内容
type Snapshot map[string]FileRef

// Paths 按字典序返回全部路径
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone 浅拷贝
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Builder 负责在扁平快照与 Merkle Tree 之间转换
type Builder struct {
	store *objects.Store
}

func NewBuilder(store *objects.Store) *Builder {
	return &Builder{store: store}
}

// Build 将扁平快照折叠为嵌套目录并持久化，返回根树的 Hash
func (b *Builder) Build(ctx context.Context, snap Snapshot) (types.Hash, error) {
	// 1. 构建内存中的目录树结构
	root := newDirNode("")
	for _, path := range snap.Paths() {
		if err := root.addFile(path, snap[path]); err != nil {
			return "", err
		}
	}
	// 2. 自底向上计算 Hash 并持久化
	return b.writeNode(ctx, root)
}

// Flatten 读取一棵树，展开为扁平快照。空 Hash 得到空快照。
func (b *Builder) Flatten(ctx context.Context, treeID types.Hash) (Snapshot, error) {
	snap := make(Snapshot)
	if treeID.IsZero() {
		return snap, nil
	}
	if err := b.flatten(ctx, treeID, "", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (b *Builder) flatten(ctx context.Context, treeID types.Hash, prefix string, out Snapshot) error {
	tree, err := b.store.GetTree(ctx, treeID)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Type == core.EntryDir {
			if err := b.flatten(ctx, e.Cid.Hash, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = FileRef{Hash: e.Cid.Hash, Size: e.Size}
	}
	return nil
}

// -----------------------------------------------------------------------------
// 内部辅助结构：内存树节点
// -----------------------------------------------------------------------------

type node struct {
	name     string
	isDir    bool
	children map[string]*node // 子节点 (仅目录有效)
	ref      FileRef          // 文件内容 (仅文件有效)
}

func newDirNode(name string) *node {
	return &node{
		name:     name,
		isDir:    true,
		children: make(map[string]*node),
	}
}

// addFile 将一个文件路径插入到内存树中
// 例如 path="a/b/c.txt" -> 递归创建 a, b, 然后在 b 下创建 c.txt
func (n *node) addFile(path string, ref FileRef) error {
	parts := strings.Split(path, "/")
	current := n

	for _, part := range parts[:len(parts)-1] {
		child, exists := current.children[part]
		if !exists {
			child = newDirNode(part)
			current.children[part] = child
		}
		if !child.isDir {
			return errs.InvalidState("treebuilder.build", fmt.Sprintf("%q is both a file and a directory", part))
		}
		current = child
	}

	fileName := parts[len(parts)-1]
	if existing, ok := current.children[fileName]; ok && existing.isDir {
		return errs.InvalidState("treebuilder.build", fmt.Sprintf("%q is both a file and a directory", path))
	}
	current.children[fileName] = &node{name: fileName, ref: ref}
	return nil
}

// writeNode 递归地将内存节点转换为 core.Tree 并写入存储
func (b *Builder) writeNode(ctx context.Context, n *node) (types.Hash, error) {
	entries := make([]core.TreeEntry, 0, len(n.children))

	for name, child := range n.children {
		if !child.isDir {
			entries = append(entries, core.TreeEntry{
				Name: name,
				Type: core.EntryFile,
				Cid:  ingester.LinkFor(child.ref.Hash, child.ref.Size),
				Size: child.ref.Size,
			})
			continue
		}

		childHash, err := b.writeNode(ctx, child)
		if err != nil {
			return "", err
		}
		entries = append(entries, core.TreeEntry{
			Name: name,
			Type: core.EntryDir,
			Cid:  core.NewLink(childHash),
		})
	}

	// core.NewTree 负责排序，保证 Hash 的确定性
	tree, err := b.store.StoreTree(ctx, entries)
	if err != nil {
		return "", err
	}
	return tree.ID(), nil
}
