package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Timeline 存储分支指针
type Timeline struct {
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Head 指向当前的 Shove ID，第一次 shove 之前为空
	Head string `gorm:"type:varchar(64);not null;default:''"`

	// 远程跟踪信息 (可选)
	RemoteName     string `gorm:"type:varchar(255)"`
	RemoteTimeline string `gorm:"type:varchar(255)"`

	// Version 用于乐观锁并发控制 (CAS)，每次更新 +1
	Version int64 `gorm:"default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Setting 仓库级键值 (当前 timeline、pile base 等)
type Setting struct {
	Key   string `gorm:"primaryKey;type:varchar(255)"`
	Value string `gorm:"type:text"`
}

// PileEntry 暂存区条目。Slot 为空表示当前工作暂存区，
// "stash/<timeline>" 表示切换 timeline 时保存下来的暂存区。
type PileEntry struct {
	Slot string `gorm:"primaryKey;type:varchar(255)"`
	Path string `gorm:"primaryKey;type:varchar(1024)"`

	Status      string `gorm:"type:varchar(16);not null"`
	Hash        string `gorm:"type:varchar(64)"` // Deleted 时为空
	BaseHash    string `gorm:"type:varchar(64)"` // 该路径在 base shove 中的内容
	RenamedFrom string `gorm:"type:varchar(1024)"`
	Size        int64

	StagedAt time.Time
}

// MergeState 进行中的合并 (最多一条，ID 恒为 1)
type MergeState struct {
	ID         uint   `gorm:"primaryKey"`
	Source     string `gorm:"type:varchar(255)"` // 被合并进来的 timeline
	Target     string `gorm:"type:varchar(255)"`
	SourceHead string `gorm:"type:varchar(64)"`
	OursHead   string `gorm:"type:varchar(64)"`
	BaseHead   string `gorm:"type:varchar(64)"`
	Message    string `gorm:"type:text"`
	StartedAt  time.Time
}

// Conflict 合并冲突记录。Base/Ours/Theirs 为空表示该侧不存在此路径。
type Conflict struct {
	Path   string `gorm:"primaryKey;type:varchar(1024)"`
	Base   string `gorm:"type:varchar(64)"`
	Ours   string `gorm:"type:varchar(64)"`
	Theirs string `gorm:"type:varchar(64)"`

	Resolved   bool
	Resolution string `gorm:"type:varchar(16)"`
}

// ShoveModel 是 core.Shove 在关系型数据库中的投影 (索引)
// 用于按作者、时间查询历史
type ShoveModel struct {
	Hash string `gorm:"primaryKey;type:char(64)"`

	AuthorName  string `gorm:"index;type:varchar(255)"`
	AuthorEmail string `gorm:"index;type:varchar(255)"`
	Message     string `gorm:"type:text"`
	Timestamp   int64  `gorm:"index"`

	TreeHash string `gorm:"type:char(64);not null"`

	// Parents: JSON 数组 ["hash1", "hash2"]，保持顺序
	Parents datatypes.JSON

	CreatedAt time.Time
}

func (ShoveModel) TableName() string {
	return "shoves"
}

// FileStat 工作区文件的 stat 缓存：size + mtime 未变时复用上次计算的 Hash
type FileStat struct {
	Path      string `gorm:"primaryKey;type:varchar(1024)"`
	Size      int64
	ModTimeNs int64
	Hash      string `gorm:"type:char(64);not null"`
}

// Operation 操作日志，用于 undo / redo。
// Before / After 为操作前后的完整状态快照 (State 的 JSON)。
type Operation struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Kind      string `gorm:"type:varchar(32);index"`
	Summary   string `gorm:"type:text"`
	Before    datatypes.JSON
	After     datatypes.JSON
	Undone    bool `gorm:"index"`
	CreatedAt time.Time
}

// AllModels 所有需要迁移的表
func AllModels() []any {
	return []any{
		&Timeline{}, &Setting{}, &PileEntry{}, &MergeState{}, &Conflict{},
		&ShoveModel{}, &FileStat{}, &Operation{},
	}
}
