package app

import (
	"context"
	"io"

	"pocket/pkg/ignore"
	"pocket/pkg/types"
)

// IgnoreAdd 添加永久忽略规则 (写入 .pocketignore)
func (r *Repository) IgnoreAdd(ctx context.Context, pattern string) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := r.ignore.Add(pattern); err != nil {
		return err
	}
	r.Logger.Info("ignore pattern added", "pattern", pattern)
	return nil
}

// IgnoreRemove 删除永久忽略规则
func (r *Repository) IgnoreRemove(ctx context.Context, pattern string) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := r.ignore.Remove(pattern); err != nil {
		return err
	}
	r.Logger.Info("ignore pattern removed", "pattern", pattern)
	return nil
}

// IgnoreTemporary 添加仅对本进程生效的规则
func (r *Repository) IgnoreTemporary(pattern string) {
	r.ignore.AddTemporary(pattern)
}

// IgnoreList 按生效顺序列出全部规则
func (r *Repository) IgnoreList() []ignore.Pattern {
	return r.ignore.List()
}

// Cat 打印对象。raw 为 true 时输出原始字节 (blob 为文件内容)。
func (r *Repository) Cat(ctx context.Context, prefix string, w io.Writer, raw bool) error {
	id, err := r.expandAny(ctx, prefix)
	if err != nil {
		return err
	}
	if !raw {
		return r.exporter.PrintObject(ctx, id, w)
	}
	data, err := r.objects.Raw(ctx, id)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// expandAny 依次尝试 Timeline 名称、Shove、普通对象
func (r *Repository) expandAny(ctx context.Context, prefix string) (types.Hash, error) {
	if id, err := r.ResolveRev(ctx, prefix); err == nil && !id.IsZero() {
		return id, nil
	}
	return r.objects.ExpandObject(ctx, types.HashPrefix(prefix))
}
