// Package lock 提供仓库级的排他锁 (基于 flock 的建议锁)。
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pocket/pkg/errs"

	"github.com/gofrs/flock"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultRetryDelay = 50 * time.Millisecond
)

// Lock 是一次已获得的排他锁，用完必须 Release
type Lock struct {
	fl *flock.Flock
}

// Acquire 在 timeout 内以 retryDelay 间隔重试获取锁。
// 超时返回 InvalidState("repository busy")。
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, DefaultRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.PathIO("lock.acquire", path, err)
	}
	if !ok {
		slog.Warn("repository lock busy", "path", path, "timeout", timeout)
		return nil, errs.InvalidState("lock.acquire", fmt.Sprintf("repository busy (waited %s)", timeout))
	}
	return &Lock{fl: fl}, nil
}

// Release 释放锁。重复调用是安全的。
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errs.IO("lock.release", err)
	}
	return nil
}
