package merge

import (
	"fmt"
	"strings"

	"pocket/pkg/errs"
	"pocket/pkg/treebuilder"
)

// PathVersions 一个路径在三方中的版本，nil 表示该方不存在此路径
type PathVersions struct {
	Path   string
	Base   *treebuilder.FileRef
	Ours   *treebuilder.FileRef
	Theirs *treebuilder.FileRef
}

// Outcome 单个路径的合并结果
type Outcome struct {
	Result   *treebuilder.FileRef // nil 表示删除
	Conflict bool
}

// Resolver 决定单个路径如何合并
type Resolver interface {
	Resolve(v PathVersions) Outcome
}

// ThreeWay 标准三方合并：只有两边都改动且结果不同才冲突。
// 冲突时 Result 保留 ours 的版本。
type ThreeWay struct{}

func (ThreeWay) Resolve(v PathVersions) Outcome {
	switch {
	case sameVersion(v.Ours, v.Theirs):
		return Outcome{Result: v.Ours}
	case sameVersion(v.Base, v.Ours):
		return Outcome{Result: v.Theirs}
	case sameVersion(v.Base, v.Theirs):
		return Outcome{Result: v.Ours}
	default:
		return Outcome{Result: v.Ours, Conflict: true}
	}
}

// preference 由固定取一方的策略实现，用于无法逐路径合并的文件/目录冲突
type preference interface {
	prefers() side
}

type side int

const (
	sideOurs side = iota
	sideTheirs
)

// Ours 三方合并，冲突一律取当前 Timeline 的版本
type Ours struct{}

func (Ours) prefers() side { return sideOurs }

func (Ours) Resolve(v PathVersions) Outcome {
	out := ThreeWay{}.Resolve(v)
	if out.Conflict {
		return Outcome{Result: v.Ours}
	}
	return out
}

// Theirs 三方合并，冲突一律取来源 Timeline 的版本
type Theirs struct{}

func (Theirs) prefers() side { return sideTheirs }

func (Theirs) Resolve(v PathVersions) Outcome {
	out := ThreeWay{}.Resolve(v)
	if out.Conflict {
		return Outcome{Result: v.Theirs}
	}
	return out
}

func sameVersion(a, b *treebuilder.FileRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash == b.Hash
}

// ParseStrategy 把名称 (three-way / ours / theirs) 转换为 Resolver
func ParseStrategy(name string) (Resolver, error) {
	switch strings.ToLower(name) {
	case "", "three-way", "threeway", "auto":
		return ThreeWay{}, nil
	case "ours":
		return Ours{}, nil
	case "theirs":
		return Theirs{}, nil
	default:
		return nil, errs.InvalidState("merge.strategy", fmt.Sprintf("unknown merge strategy %q", name))
	}
}

// Mode 控制是否允许 fast-forward
type Mode int

const (
	Auto              Mode = iota // 能 fast-forward 就 fast-forward
	FastForwardOnly               // 只允许 fast-forward
	AlwaysCreateShove             // 总是生成合并 Shove
)

func (m Mode) String() string {
	switch m {
	case FastForwardOnly:
		return "ff-only"
	case AlwaysCreateShove:
		return "no-ff"
	default:
		return "auto"
	}
}

// ResolutionKind 冲突的解决方式
type ResolutionKind string

const (
	UseOurs    ResolutionKind = "ours"
	UseTheirs  ResolutionKind = "theirs"
	UseContent ResolutionKind = "content"
	UseDelete  ResolutionKind = "delete"
)

// Resolution 用户对单个冲突的处理
type Resolution struct {
	Kind    ResolutionKind
	Content []byte // 仅 UseContent
}

// Message 合并 Shove 的默认提交信息
func Message(source, target string) string {
	return fmt.Sprintf("Merge %s into %s", source, target)
}
