// Package refs 管理 Timeline (分支指针) 与 HEAD (当前激活的 Timeline)。
package refs

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"pocket/pkg/errs"
	"pocket/pkg/meta"
	"pocket/pkg/types"
)

// DefaultTimeline 新仓库自带的 Timeline
const DefaultTimeline = "main"

var (
	ErrNoHead     = errs.NotFound("refs.head", "HEAD not found (timeline has no shoves yet)")
	ErrStaleHead  = meta.ErrConcurrentUpdate
	ErrActiveLine = errs.InvalidState("refs.delete", "cannot delete the active timeline")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// ValidateName 检查 Timeline 名称是否合法
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || len(name) > 128 {
		return errs.InvalidState("refs.validate", fmt.Sprintf("invalid timeline name %q", name))
	}
	return nil
}

// Manager 负责管理引用 (Refs)
type Manager struct {
	repo *meta.Repository
}

func NewManager(repo *meta.Repository) *Manager {
	return &Manager{repo: repo}
}

// With 返回绑定到事务 tx 的 Manager
func (m *Manager) With(tx *meta.Repository) *Manager {
	return &Manager{repo: tx}
}

// Active 返回当前激活的 Timeline 名称，未设置时为 main
func (m *Manager) Active(ctx context.Context) (string, error) {
	name, ok, err := m.repo.GetSetting(ctx, meta.KeyActiveTimeline)
	if err != nil {
		return "", errs.IO("refs.active", err)
	}
	if !ok || name == "" {
		return DefaultTimeline, nil
	}
	return name, nil
}

// SetActive 切换 HEAD 指向的 Timeline
func (m *Manager) SetActive(ctx context.Context, name string) error {
	if _, err := m.Get(ctx, name); err != nil {
		return err
	}
	if err := m.repo.SetSetting(ctx, meta.KeyActiveTimeline, name); err != nil {
		return errs.IO("refs.set_active", err)
	}
	return nil
}

// GetHead 读取当前 Timeline 的 head 与版本号。
// 如果还没有任何提交，返回 ErrNoHead (版本号仍然有效，可用于首次 CAS)。
func (m *Manager) GetHead(ctx context.Context) (types.Hash, int64, error) {
	name, err := m.Active(ctx)
	if err != nil {
		return "", 0, err
	}
	tl, err := m.Get(ctx, name)
	if err != nil {
		return "", 0, err
	}
	if tl.Head == "" {
		return "", tl.Version, ErrNoHead
	}
	return types.Hash(tl.Head), tl.Version, nil
}

// UpdateHead 使用 CAS 移动当前 Timeline
func (m *Manager) UpdateHead(ctx context.Context, newHead types.Hash, oldVersion int64) error {
	name, err := m.Active(ctx)
	if err != nil {
		return err
	}
	return m.Advance(ctx, name, newHead, oldVersion)
}

// Advance 使用 CAS 移动指定 Timeline
func (m *Manager) Advance(ctx context.Context, name string, newHead types.Hash, oldVersion int64) error {
	err := m.repo.UpdateHead(ctx, name, newHead, oldVersion)
	if errors.Is(err, meta.ErrConcurrentUpdate) {
		return err
	}
	if err != nil {
		return errs.IO("refs.advance", err)
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, name string) (*meta.Timeline, error) {
	tl, err := m.repo.GetTimeline(ctx, name)
	if errors.Is(err, meta.ErrTimelineNotFound) {
		return nil, &errs.Error{Kind: errs.ErrNotFound, Op: "refs.get", Msg: fmt.Sprintf("timeline %q does not exist", name)}
	}
	if err != nil {
		return nil, errs.IO("refs.get", err)
	}
	return tl, nil
}

// Create 新建 Timeline，basedOn 可以为空 (还没有提交的仓库)
func (m *Manager) Create(ctx context.Context, name string, basedOn types.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := m.repo.CreateTimeline(ctx, name, basedOn)
	if errors.Is(err, meta.ErrTimelineExists) {
		return &errs.Error{Kind: errs.ErrInvalidState, Op: "refs.create", Msg: fmt.Sprintf("timeline %q already exists", name)}
	}
	if err != nil {
		return errs.IO("refs.create", err)
	}
	return nil
}

// List 按名称排序
func (m *Manager) List(ctx context.Context) ([]meta.Timeline, error) {
	tls, err := m.repo.ListTimelines(ctx)
	if err != nil {
		return nil, errs.IO("refs.list", err)
	}
	return tls, nil
}

// Delete 删除 Timeline 指针，不删除任何 Shove
func (m *Manager) Delete(ctx context.Context, name string) error {
	active, err := m.Active(ctx)
	if err != nil {
		return err
	}
	if name == active {
		return ErrActiveLine
	}
	if _, err := m.Get(ctx, name); err != nil {
		return err
	}
	if err := m.repo.DeleteTimeline(ctx, name); err != nil {
		return errs.IO("refs.delete", err)
	}
	return nil
}

// SetRemote 记录远程跟踪信息，remote 为空表示取消跟踪
func (m *Manager) SetRemote(ctx context.Context, name, remote, remoteTimeline string) error {
	if _, err := m.Get(ctx, name); err != nil {
		return err
	}
	if err := m.repo.SetRemote(ctx, name, remote, remoteTimeline); err != nil {
		return errs.IO("refs.set_remote", err)
	}
	return nil
}
