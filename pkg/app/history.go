package app

import (
	"context"
	"iter"

	"pocket/pkg/core"
	"pocket/pkg/errs"
	"pocket/pkg/history"
	"pocket/pkg/types"
)

// LogOptions 历史查询参数
type LogOptions struct {
	Timeline string // 为空时使用当前 Timeline；也可以是 Shove ID
	Limit    int    // <= 0 表示不限
	Author   string // 按作者名或邮箱过滤
}

// Log 按逆时间拓扑序返回历史。序列是惰性的，可以重复遍历。
func (r *Repository) Log(ctx context.Context, opts LogOptions) (iter.Seq2[*core.Shove, error], error) {
	from, err := r.ResolveRev(ctx, opts.Timeline)
	if err != nil {
		return nil, err
	}
	if opts.Author == "" {
		return r.history.Log(ctx, from, opts.Limit), nil
	}

	// 作者过滤走索引，遍历顺序仍由 walker 决定
	rows, err := r.meta.FindShovesByAuthor(ctx, opts.Author, 0)
	if err != nil {
		return nil, errs.IO("app.log", err)
	}
	wanted := make(map[types.Hash]bool, len(rows))
	for _, m := range rows {
		wanted[types.Hash(m.Hash)] = true
	}
	return func(yield func(*core.Shove, error) bool) {
		n := 0
		for s, err := range r.history.Log(ctx, from, 0) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !wanted[s.ID()] {
				continue
			}
			if !yield(s, nil) {
				return
			}
			n++
			if opts.Limit > 0 && n >= opts.Limit {
				return
			}
		}
	}, nil
}

// Graph 返回带分叉/合并信息的历史图
func (r *Repository) Graph(ctx context.Context, timeline string) ([]history.GraphNode, error) {
	from, err := r.ResolveRev(ctx, timeline)
	if err != nil {
		return nil, err
	}
	return r.history.Graph(ctx, from)
}
