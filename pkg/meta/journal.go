package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// State 是仓库可变元数据的完整快照。
// 对象库只增不删，所以 undo / redo 只需要在快照之间切换。
type State struct {
	Timelines []Timeline  `json:"timelines"`
	Settings  []Setting   `json:"settings"`
	Pile      []PileEntry `json:"pile"`
	Merge     *MergeState `json:"merge,omitempty"`
	Conflicts []Conflict  `json:"conflicts,omitempty"`
}

// Setting 在快照中查找某个键
func (s *State) Setting(key string) string {
	for _, kv := range s.Settings {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Snapshot 读取当前状态
func (r *Repository) Snapshot(ctx context.Context) (*State, error) {
	st := &State{}
	if err := r.conn(ctx).Order("name ASC").Find(&st.Timelines).Error; err != nil {
		return nil, err
	}
	if err := r.conn(ctx).Order("key ASC").Find(&st.Settings).Error; err != nil {
		return nil, err
	}
	if err := r.conn(ctx).Order("slot ASC, path ASC").Find(&st.Pile).Error; err != nil {
		return nil, err
	}
	ms, err := r.GetMergeState(ctx)
	if err != nil {
		return nil, err
	}
	st.Merge = ms
	if st.Conflicts, err = r.ListConflicts(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// Restore 用快照覆盖当前状态。Timeline 的版本号继续递增，保证 CAS 不会误判。
func (r *Repository) Restore(ctx context.Context, st *State) error {
	var current []Timeline
	if err := r.conn(ctx).Find(&current).Error; err != nil {
		return err
	}
	versions := make(map[string]int64, len(current))
	for _, tl := range current {
		versions[tl.Name] = tl.Version
	}

	conn := r.conn(ctx)
	for _, model := range []any{&Timeline{}, &Setting{}, &PileEntry{}, &Conflict{}, &MergeState{}} {
		if err := conn.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
	}

	if len(st.Timelines) > 0 {
		tls := make([]Timeline, len(st.Timelines))
		copy(tls, st.Timelines)
		for i := range tls {
			tls[i].Version = max(versions[tls[i].Name], tls[i].Version) + 1
		}
		if err := conn.Create(&tls).Error; err != nil {
			return err
		}
	}
	if len(st.Settings) > 0 {
		if err := conn.Create(&st.Settings).Error; err != nil {
			return err
		}
	}
	if len(st.Pile) > 0 {
		if err := conn.Create(&st.Pile).Error; err != nil {
			return err
		}
	}
	if st.Merge != nil {
		ms := *st.Merge
		if err := conn.Create(&ms).Error; err != nil {
			return err
		}
	}
	if len(st.Conflicts) > 0 {
		if err := conn.Create(&st.Conflicts).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecordOperation 追加一条操作日志，并丢弃所有已撤销 (不可再 redo) 的记录
func (r *Repository) RecordOperation(ctx context.Context, kind, summary string, before, after *State) error {
	b, err := json.Marshal(before)
	if err != nil {
		return err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).Where("undone = ?", true).Delete(&Operation{}).Error; err != nil {
		return err
	}
	op := Operation{
		Kind:    kind,
		Summary: summary,
		Before:  datatypes.JSON(b),
		After:   datatypes.JSON(a),
	}
	return r.conn(ctx).Create(&op).Error
}

// LastOperation 最近一条未撤销的操作，没有时返回 nil
func (r *Repository) LastOperation(ctx context.Context) (*Operation, error) {
	return r.firstOperation(ctx, false, "id DESC")
}

// NextRedo 最早一条已撤销的操作，没有时返回 nil
func (r *Repository) NextRedo(ctx context.Context) (*Operation, error) {
	return r.firstOperation(ctx, true, "id ASC")
}

func (r *Repository) firstOperation(ctx context.Context, undone bool, order string) (*Operation, error) {
	var op Operation
	err := r.conn(ctx).Where("undone = ?", undone).Order(order).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListOperations 最新的在前
func (r *Repository) ListOperations(ctx context.Context, limit int) ([]Operation, error) {
	var ops []Operation
	q := r.conn(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&ops).Error
	return ops, err
}

func (r *Repository) MarkUndone(ctx context.Context, id uint, undone bool) error {
	return r.conn(ctx).Model(&Operation{}).Where("id = ?", id).Update("undone", undone).Error
}

// DecodeState 解析操作日志中的快照
func DecodeState(data datatypes.JSON) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state snapshot: %w", err)
	}
	return &st, nil
}
