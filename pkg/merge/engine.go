// Package merge 实现最近公共祖先查找与逐路径的三方合并。
package merge

import (
	"context"
	"path"
	"slices"
	"strings"

	"pocket/pkg/errs"
	"pocket/pkg/history"
	"pocket/pkg/objects"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

var ErrDiverged = errs.InvalidState("merge.fast_forward", "timelines have diverged, fast-forward not possible")

// Kind 合并计划的类型
type Kind int

const (
	UpToDate    Kind = iota // 来源已经是当前 head 的祖先
	FastForward             // 当前 head 是来源的祖先，直接移动指针
	ThreeWayMerge
)

func (k Kind) String() string {
	switch k {
	case UpToDate:
		return "up-to-date"
	case FastForward:
		return "fast-forward"
	default:
		return "merge"
	}
}

// Conflict 一个无法自动合并的路径，空 Hash 表示该方不存在
type Conflict struct {
	Path   string
	Base   types.Hash
	Ours   types.Hash
	Theirs types.Hash
}

// Plan 合并的计算结果，尚未写入任何状态
type Plan struct {
	Kind      Kind
	Base      types.Hash // 最近公共祖先
	Ours      types.Hash
	Theirs    types.Hash
	Result    treebuilder.Snapshot // 合并后的快照，冲突路径保留 ours 的版本
	Conflicts []Conflict
}

type Engine struct {
	store  *objects.Store
	walker *history.Walker
	trees  *treebuilder.Builder
}

func NewEngine(store *objects.Store) *Engine {
	return &Engine{
		store:  store,
		walker: history.NewWalker(store),
		trees:  treebuilder.NewBuilder(store),
	}
}

// Plan 计算把 theirs 合并进 ours 的结果
func (e *Engine) Plan(ctx context.Context, ours, theirs types.Hash, mode Mode, resolver Resolver) (*Plan, error) {
	if resolver == nil {
		resolver = ThreeWay{}
	}
	plan := &Plan{Ours: ours, Theirs: theirs}

	// 1. 祖先关系：up-to-date / fast-forward
	upToDate, err := e.walker.IsAncestor(ctx, theirs, ours)
	if err != nil {
		return nil, err
	}
	if upToDate {
		plan.Kind = UpToDate
		return plan, nil
	}
	canFF, err := e.walker.IsAncestor(ctx, ours, theirs)
	if err != nil {
		return nil, err
	}
	// 当前 Timeline 还没有提交时无法生成合并 Shove，只能 fast-forward
	if canFF && (mode != AlwaysCreateShove || ours.IsZero()) {
		plan.Kind = FastForward
		plan.Base = ours
		return plan, nil
	}
	if !canFF && mode == FastForwardOnly {
		return nil, ErrDiverged
	}

	// 2. 三方合并
	plan.Kind = ThreeWayMerge
	plan.Base, err = e.LCA(ctx, ours, theirs)
	if err != nil {
		return nil, err
	}
	baseSnap, err := e.snapshot(ctx, plan.Base)
	if err != nil {
		return nil, err
	}
	oursSnap, err := e.snapshot(ctx, ours)
	if err != nil {
		return nil, err
	}
	theirsSnap, err := e.snapshot(ctx, theirs)
	if err != nil {
		return nil, err
	}

	plan.Result, plan.Conflicts = mergeSnapshots(baseSnap, oursSnap, theirsSnap, resolver)
	return plan, nil
}

// LCA 从两端同时按层广度优先搜索，返回第一批两端都可达的节点中 ID 最小的一个。
// 没有公共祖先时返回空 Hash。
func (e *Engine) LCA(ctx context.Context, a, b types.Hash) (types.Hash, error) {
	if a.IsZero() || b.IsZero() {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	seenA := map[types.Hash]bool{a: true}
	seenB := map[types.Hash]bool{b: true}
	frontA := []types.Hash{a}
	frontB := []types.Hash{b}

	var found []types.Hash
	if seenB[a] {
		found = append(found, a)
	}
	for len(found) == 0 && (len(frontA) > 0 || len(frontB) > 0) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var err error
		frontA, err = e.expand(ctx, frontA, seenA, seenB, &found)
		if err != nil {
			return "", err
		}
		frontB, err = e.expand(ctx, frontB, seenB, seenA, &found)
		if err != nil {
			return "", err
		}
	}
	if len(found) == 0 {
		return "", nil
	}
	return slices.Min(found), nil
}

// expand 推进一层；新访问的节点若已被另一端访问过则记为候选
func (e *Engine) expand(ctx context.Context, front []types.Hash, seen, other map[types.Hash]bool, found *[]types.Hash) ([]types.Hash, error) {
	var next []types.Hash
	for _, id := range front {
		s, err := e.store.GetShove(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, p := range s.ParentIDs() {
			if seen[p] {
				continue
			}
			seen[p] = true
			if other[p] {
				*found = append(*found, p)
			}
			next = append(next, p)
		}
	}
	return next, nil
}

func (e *Engine) snapshot(ctx context.Context, id types.Hash) (treebuilder.Snapshot, error) {
	if id.IsZero() {
		return make(treebuilder.Snapshot), nil
	}
	s, err := e.store.GetShove(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.trees.Flatten(ctx, s.Tree())
}

// mergeSnapshots 对三方路径的并集逐个求解
func mergeSnapshots(base, ours, theirs treebuilder.Snapshot, resolver Resolver) (treebuilder.Snapshot, []Conflict) {
	paths := make(map[string]struct{})
	for _, snap := range []treebuilder.Snapshot{base, ours, theirs} {
		for p := range snap {
			paths[p] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	slices.Sort(sorted)

	result := make(treebuilder.Snapshot)
	var conflicts []Conflict
	for _, p := range sorted {
		v := PathVersions{Path: p, Base: lookup(base, p), Ours: lookup(ours, p), Theirs: lookup(theirs, p)}
		out := resolver.Resolve(v)
		if out.Result != nil {
			result[p] = *out.Result
		}
		if out.Conflict {
			conflicts = append(conflicts, newConflict(p, base, ours, theirs))
		}
	}
	return result, resolveCollisions(result, base, ours, theirs, resolver, conflicts)
}

// resolveCollisions 处理文件与目录占用同一路径 (一方的 x 与另一方的 x/y)。
// 这样的结果无法折叠为目录树：以 x 为根的整个子树回退到一方的版本。
// Ours / Theirs 直接取对应一方，其余策略保留 ours 并把两边不同的路径记为冲突。
func resolveCollisions(result, base, ours, theirs treebuilder.Snapshot, resolver Resolver, conflicts []Conflict) []Conflict {
	keep := ours
	pref, fixed := resolver.(preference)
	if fixed && pref.prefers() == sideTheirs {
		keep = theirs
	}
	recorded := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		recorded[c.Path] = true
	}

	roots := collisionRoots(result)
	for len(roots) > 0 {
		for _, root := range roots {
			for _, p := range subtree(root, base, ours, theirs, result) {
				if ref, ok := keep[p]; ok {
					result[p] = ref
				} else {
					delete(result, p)
				}
				if fixed || recorded[p] || sameVersion(lookup(ours, p), lookup(theirs, p)) {
					continue
				}
				recorded[p] = true
				conflicts = append(conflicts, newConflict(p, base, ours, theirs))
			}
		}
		roots = collisionRoots(result)
	}
	slices.SortFunc(conflicts, func(a, b Conflict) int { return strings.Compare(a.Path, b.Path) })
	return conflicts
}

// collisionRoots 返回既是文件又是其他路径祖先目录的路径，只保留最上层的
func collisionRoots(snap treebuilder.Snapshot) []string {
	dirs := make(map[string]bool)
	for p := range snap {
		for d := path.Dir(p); d != "."; d = path.Dir(d) {
			dirs[d] = true
		}
	}
	var roots []string
	for _, p := range snap.Paths() {
		if !dirs[p] {
			continue
		}
		covered := false
		for d := path.Dir(p); d != "."; d = path.Dir(d) {
			if _, isFile := snap[d]; isFile && dirs[d] {
				covered = true
				break
			}
		}
		if !covered {
			roots = append(roots, p)
		}
	}
	return roots
}

// subtree 列出各快照中 root 本身及其下的全部路径
func subtree(root string, snaps ...treebuilder.Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	for _, snap := range snaps {
		for p := range snap {
			if (p == root || strings.HasPrefix(p, root+"/")) && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return out
}

func newConflict(p string, base, ours, theirs treebuilder.Snapshot) Conflict {
	return Conflict{
		Path:   p,
		Base:   hashOf(lookup(base, p)),
		Ours:   hashOf(lookup(ours, p)),
		Theirs: hashOf(lookup(theirs, p)),
	}
}

func lookup(snap treebuilder.Snapshot, p string) *treebuilder.FileRef {
	ref, ok := snap[p]
	if !ok {
		return nil
	}
	return &ref
}

func hashOf(ref *treebuilder.FileRef) types.Hash {
	if ref == nil {
		return ""
	}
	return ref.Hash
}
