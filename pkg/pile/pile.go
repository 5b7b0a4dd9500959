// Package pile 管理暂存区：待提交的变更集合 (相对于 base shove)。
package pile

import (
	"context"
	"iter"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"pocket/pkg/meta"
	"pocket/pkg/treebuilder"
	"pocket/pkg/types"
)

// Status 暂存条目的变更类型
type Status string

const (
	Added    Status = "added"
	Modified Status = "modified"
	Deleted  Status = "deleted"
	Renamed  Status = "renamed"
)

// Entry 代表暂存区中的一条记录
type Entry struct {
	Path        string
	Status      Status
	Hash        types.Hash // Deleted 时为空
	BaseHash    types.Hash // 该路径在 base shove 中的内容 (Added 时为空)
	RenamedFrom string     // 仅 Renamed
	Size        int64
	StagedAt    time.Time
}

// Change 是 DiffAgainstHead 的一项
type Change struct {
	Path        string
	Kind        Status
	RenamedFrom string
}

// Pile 管理暂存区状态
type Pile struct {
	mu      sync.RWMutex
	base    types.Hash
	entries map[string]Entry
}

func New(base types.Hash) *Pile {
	return &Pile{base: base, entries: make(map[string]Entry)}
}

// Base 返回暂存区所基于的 shove
func (p *Pile) Base() types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.base
}

func (p *Pile) SetBase(base types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = base
}

// Put 插入或覆盖一条记录
func (p *Pile) Put(e Entry) {
	e.Path = CleanPath(e.Path)
	if e.StagedAt.IsZero() {
		e.StagedAt = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[e.Path] = e
}

// Get 查询单条记录
func (p *Pile) Get(path string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[CleanPath(path)]
	return e, ok
}

// Remove 取消暂存，返回记录是否存在
func (p *Pile) Remove(path string) bool {
	key := CleanPath(path)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[key]
	delete(p.entries, key)
	return ok
}

func (p *Pile) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]Entry)
}

func (p *Pile) IsEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries) == 0
}

func (p *Pile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Entries 按路径排序返回副本
func (p *Pile) Entries() []Entry {
	p.mu.RLock()
	snap := maps.Clone(p.entries)
	p.mu.RUnlock()

	out := make([]Entry, 0, len(snap))
	for _, k := range slices.Sorted(maps.Keys(snap)) {
		out = append(out, snap[k])
	}
	return out
}

// DiffAgainstHead 返回相对于 base 的变更序列，按路径排序。
// 序列是惰性的，可以重复遍历。
func (p *Pile) DiffAgainstHead() iter.Seq[Change] {
	return func(yield func(Change) bool) {
		for _, e := range p.Entries() {
			if !yield(Change{Path: e.Path, Kind: e.Status, RenamedFrom: e.RenamedFrom}) {
				return
			}
		}
	}
}

// Apply 把暂存区叠加到 base 快照上，得到将要提交的快照
func (p *Pile) Apply(base treebuilder.Snapshot) treebuilder.Snapshot {
	out := base.Clone()
	for _, e := range p.Entries() {
		switch e.Status {
		case Deleted:
			delete(out, e.Path)
		case Renamed:
			delete(out, e.RenamedFrom)
			out[e.Path] = treebuilder.FileRef{Hash: e.Hash, Size: e.Size}
		default:
			out[e.Path] = treebuilder.FileRef{Hash: e.Hash, Size: e.Size}
		}
	}
	return out
}

// splitRename 重新暂存某个重命名的来源路径时，把该重命名拆回为目标路径的新增。
// 否则 Apply 仍会删除来源路径。
func (p *Pile) splitRename(source string) (Entry, bool) {
	source = CleanPath(source)
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, e := range p.entries {
		if e.Status != Renamed || e.RenamedFrom != source {
			continue
		}
		e.Status = Added
		e.RenamedFrom = ""
		e.BaseHash = ""
		p.entries[path] = e
		return e, true
	}
	return Entry{}, false
}

// StagePath 让 path 在 Apply(base) 后的内容等于 ref，nil 表示删除。
// 与 base 相同时取消暂存。
func (p *Pile) StagePath(base treebuilder.Snapshot, path string, ref *treebuilder.FileRef) {
	path = CleanPath(path)
	p.splitRename(path)
	old, inBase := base[path]
	switch {
	case ref == nil && !inBase, ref != nil && inBase && old.Hash == ref.Hash:
		p.Remove(path)
	case ref == nil:
		p.Put(Entry{Path: path, Status: Deleted, BaseHash: old.Hash})
	case inBase:
		p.Put(Entry{Path: path, Status: Modified, Hash: ref.Hash, BaseHash: old.Hash, Size: ref.Size})
	default:
		p.Put(Entry{Path: path, Status: Added, Hash: ref.Hash, Size: ref.Size})
	}
}

// StageSnapshot 暂存 base 与 target 之间的全部差异，使 Apply(base) == target
func (p *Pile) StageSnapshot(base, target treebuilder.Snapshot) {
	p.Reset()
	for path, ref := range target {
		p.StagePath(base, path, &ref)
	}
	for path := range base {
		if _, ok := target[path]; !ok {
			p.StagePath(base, path, nil)
		}
	}
}

// CleanPath 统一路径格式 (正斜杠、无 ./ 前缀)
func CleanPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}

// -----------------------------------------------------------------------------
// 持久化 (meta 表 pile_entries)
// -----------------------------------------------------------------------------

// ActiveSlot 当前工作暂存区的槽位名
const ActiveSlot = ""

// StashSlot 切换 timeline 时保存暂存区的槽位名
func StashSlot(timeline string) string {
	return "stash/" + timeline
}

func baseKey(slot string) string {
	if slot == ActiveSlot {
		return meta.KeyPileBase
	}
	return meta.KeyPileBase + ":" + slot
}

// Load 从元数据库读取某个槽位
func Load(ctx context.Context, repo *meta.Repository, slot string) (*Pile, error) {
	base, _, err := repo.GetSetting(ctx, baseKey(slot))
	if err != nil {
		return nil, err
	}
	rows, err := repo.ListPile(ctx, slot)
	if err != nil {
		return nil, err
	}
	return FromRows(types.Hash(base), rows), nil
}

// FromRows 从元数据行 (通常是某个槽位的全部条目) 构建 Pile
func FromRows(base types.Hash, rows []meta.PileEntry) *Pile {
	p := New(base)
	for _, r := range rows {
		p.entries[r.Path] = Entry{
			Path:        r.Path,
			Status:      Status(r.Status),
			Hash:        types.Hash(r.Hash),
			BaseHash:    types.Hash(r.BaseHash),
			RenamedFrom: r.RenamedFrom,
			Size:        r.Size,
			StagedAt:    r.StagedAt,
		}
	}
	return p
}

// Save 覆盖写入某个槽位。调用方应在事务中调用。
func (p *Pile) Save(ctx context.Context, repo *meta.Repository, slot string) error {
	if err := repo.ClearPile(ctx, slot); err != nil {
		return err
	}
	for _, e := range p.Entries() {
		row := meta.PileEntry{
			Slot:        slot,
			Path:        e.Path,
			Status:      string(e.Status),
			Hash:        string(e.Hash),
			BaseHash:    string(e.BaseHash),
			RenamedFrom: e.RenamedFrom,
			Size:        e.Size,
			StagedAt:    e.StagedAt,
		}
		if err := repo.PutPileEntry(ctx, row); err != nil {
			return err
		}
	}
	return repo.SetSetting(ctx, baseKey(slot), string(p.Base()))
}

// Drop 删除某个槽位 (含 base 记录)
func Drop(ctx context.Context, repo *meta.Repository, slot string) error {
	if err := repo.ClearPile(ctx, slot); err != nil {
		return err
	}
	return repo.DeleteSetting(ctx, baseKey(slot))
}
