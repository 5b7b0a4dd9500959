package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTimelineNotFound = &errs.Error{Kind: errs.ErrNotFound, Msg: "timeline does not exist"}
	ErrTimelineExists   = &errs.Error{Kind: errs.ErrInvalidState, Msg: "timeline already exists"}
	ErrConcurrentUpdate = &errs.Error{Kind: errs.ErrInvalidState, Msg: "concurrent update detected (CAS failed)"}
	ErrShoveNotIndexed  = &errs.Error{Kind: errs.ErrNotFound, Msg: "shove not found in metadata"}
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetConn().WithContext(ctx)
}

// Transaction 在单个事务中执行 fn。fn 内只能使用传入的 tx。
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.conn(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Repository{db: NewWithConn(gtx)})
	})
}

// isDuplicate 兼容 PG 与 SQLite 的唯一约束错误
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key")
}

// -----------------------------------------------------------------------------
// 1. Timeline
// -----------------------------------------------------------------------------

func (r *Repository) GetTimeline(ctx context.Context, name string) (*Timeline, error) {
	var tl Timeline
	err := r.conn(ctx).Where("name = ?", name).First(&tl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTimelineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tl, nil
}

// ListTimelines 按名称排序
func (r *Repository) ListTimelines(ctx context.Context) ([]Timeline, error) {
	var tls []Timeline
	err := r.conn(ctx).Order("name ASC").Find(&tls).Error
	return tls, err
}

// CreateTimeline 新建分支，重名返回 ErrTimelineExists
func (r *Repository) CreateTimeline(ctx context.Context, name string, head types.Hash) error {
	tl := Timeline{Name: name, Head: string(head), Version: 1}
	if err := r.conn(ctx).Create(&tl).Error; err != nil {
		if isDuplicate(err) {
			return ErrTimelineExists
		}
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

// UpdateHead 原子更新分支指针 (CAS)
// oldVersion: 之前读到的版本号，不一致说明有人抢先改了
func (r *Repository) UpdateHead(ctx context.Context, name string, newHead types.Hash, oldVersion int64) error {
	// SQL: UPDATE timelines SET head = ?, version = version + 1 WHERE name = ? AND version = ?
	result := r.conn(ctx).Model(&Timeline{}).
		Where("name = ? AND version = ?", name, oldVersion).
		Updates(map[string]any{
			"head":       string(newHead),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// SetRemote 设置远程跟踪信息，传空字符串表示取消跟踪
func (r *Repository) SetRemote(ctx context.Context, name, remote, remoteTimeline string) error {
	result := r.conn(ctx).Model(&Timeline{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"remote_name":     remote,
			"remote_timeline": remoteTimeline,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTimelineNotFound
	}
	return nil
}

func (r *Repository) DeleteTimeline(ctx context.Context, name string) error {
	result := r.conn(ctx).Where("name = ?", name).Delete(&Timeline{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTimelineNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// 2. Settings
// -----------------------------------------------------------------------------

const (
	KeyActiveTimeline = "active_timeline"
	KeyPileBase       = "pile_base"
)

// GetSetting 返回值以及是否存在
func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var s Setting
	err := r.conn(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	return r.conn(ctx).Where("key = ?", key).Delete(&Setting{}).Error
}

// -----------------------------------------------------------------------------
// 3. Pile
// -----------------------------------------------------------------------------

// ListPile 按路径排序返回某个槽位的全部条目
func (r *Repository) ListPile(ctx context.Context, slot string) ([]PileEntry, error) {
	var entries []PileEntry
	err := r.conn(ctx).Where("slot = ?", slot).Order("path ASC").Find(&entries).Error
	return entries, err
}

// PutPileEntry 插入或覆盖一条暂存记录
func (r *Repository) PutPileEntry(ctx context.Context, e PileEntry) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}, {Name: "path"}},
		UpdateAll: true,
	}).Create(&e).Error
}

// DeletePileEntry 返回是否真的删除了记录
func (r *Repository) DeletePileEntry(ctx context.Context, slot, path string) (bool, error) {
	result := r.conn(ctx).Where("slot = ? AND path = ?", slot, path).Delete(&PileEntry{})
	return result.RowsAffected > 0, result.Error
}

func (r *Repository) ClearPile(ctx context.Context, slot string) error {
	return r.conn(ctx).Where("slot = ?", slot).Delete(&PileEntry{}).Error
}

// MovePile 把 from 槽位的全部条目移动到 to 槽位 (覆盖 to 原有内容)
func (r *Repository) MovePile(ctx context.Context, from, to string) error {
	if err := r.ClearPile(ctx, to); err != nil {
		return err
	}
	return r.conn(ctx).Model(&PileEntry{}).Where("slot = ?", from).Update("slot", to).Error
}

// -----------------------------------------------------------------------------
// 4. Merge State
// -----------------------------------------------------------------------------

const mergeStateID = 1

// GetMergeState 没有进行中的合并时返回 nil
func (r *Repository) GetMergeState(ctx context.Context) (*MergeState, error) {
	var ms MergeState
	err := r.conn(ctx).Where("id = ?", mergeStateID).First(&ms).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

// SaveMergeState 写入合并状态与冲突列表 (覆盖旧的)
func (r *Repository) SaveMergeState(ctx context.Context, ms MergeState, conflicts []Conflict) error {
	if err := r.ClearMergeState(ctx); err != nil {
		return err
	}
	ms.ID = mergeStateID
	if err := r.conn(ctx).Create(&ms).Error; err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&conflicts).Error
}

func (r *Repository) ListConflicts(ctx context.Context) ([]Conflict, error) {
	var cs []Conflict
	err := r.conn(ctx).Order("path ASC").Find(&cs).Error
	return cs, err
}

func (r *Repository) GetConflict(ctx context.Context, path string) (*Conflict, error) {
	var c Conflict
	err := r.conn(ctx).Where("path = ?", path).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) SaveConflict(ctx context.Context, c Conflict) error {
	return r.conn(ctx).Save(&c).Error
}

func (r *Repository) ClearMergeState(ctx context.Context) error {
	if err := r.conn(ctx).Where("1 = 1").Delete(&Conflict{}).Error; err != nil {
		return err
	}
	return r.conn(ctx).Where("id = ?", mergeStateID).Delete(&MergeState{}).Error
}

// -----------------------------------------------------------------------------
// 5. Shove 索引
// -----------------------------------------------------------------------------

// IndexShove 将 core.Shove “投影”到 SQL 数据库 (幂等)
func (r *Repository) IndexShove(ctx context.Context, s *core.Shove) error {
	parentsJSON, err := json.Marshal(s.ParentIDs())
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	model := ShoveModel{
		Hash:        string(s.ID()),
		AuthorName:  s.Author.Name,
		AuthorEmail: s.Author.Email,
		Message:     s.Message,
		Timestamp:   s.Timestamp,
		TreeHash:    string(s.Tree()),
		Parents:     datatypes.JSON(parentsJSON),
		CreatedAt:   time.Unix(s.Timestamp, 0),
	}

	err = r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index shove: %w", err)
	}
	return nil
}

func (r *Repository) GetShoveIndex(ctx context.Context, hash types.Hash) (*ShoveModel, error) {
	var m ShoveModel
	err := r.conn(ctx).Where("hash = ?", string(hash)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShoveNotIndexed
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindShovesByAuthor 按作者名或邮箱查询，最新的在前
func (r *Repository) FindShovesByAuthor(ctx context.Context, author string, limit int) ([]ShoveModel, error) {
	var shoves []ShoveModel
	q := r.conn(ctx).
		Where("author_name = ? OR author_email = ?", author, author).
		Order("timestamp DESC").Order("hash ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&shoves).Error
	return shoves, err
}

// -----------------------------------------------------------------------------
// 6. Stat 缓存
// -----------------------------------------------------------------------------

// GetFileStat 未命中时返回 nil
func (r *Repository) GetFileStat(ctx context.Context, path string) (*FileStat, error) {
	var fs FileStat
	err := r.conn(ctx).Where("path = ?", path).First(&fs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *Repository) SaveFileStat(ctx context.Context, fs FileStat) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	}).Create(&fs).Error
}
