// Package history 遍历 Shove DAG：日志、祖先判断与图结构。
package history

import (
	"container/heap"
	"context"
	"iter"

	"pocket/pkg/core"
	"pocket/pkg/types"
)

// Source 读取 Shove (objects.Store 满足此接口)
type Source interface {
	GetShove(ctx context.Context, id types.Hash) (*core.Shove, error)
}

type Walker struct {
	src Source
}

func NewWalker(src Source) *Walker {
	return &Walker{src: src}
}

// Log 返回 from 的全部祖先 (含自身)，子节点总在父节点之前；
// 同时就绪的节点按时间戳降序、ID 升序输出。limit <= 0 表示不限制。
// 序列可以重复遍历，每次遍历重新读取对象。
func (w *Walker) Log(ctx context.Context, from types.Hash, limit int) iter.Seq2[*core.Shove, error] {
	return func(yield func(*core.Shove, error) bool) {
		if from.IsZero() {
			return
		}
		nodes, err := w.collect(ctx, from)
		if err != nil {
			yield(nil, err)
			return
		}
		n := 0
		for s := range topoOrder(nodes, from) {
			if limit > 0 && n >= limit {
				return
			}
			if !yield(s, nil) {
				return
			}
			n++
		}
	}
}

// collect 广度优先读取全部祖先
func (w *Walker) collect(ctx context.Context, from types.Hash) (map[types.Hash]*core.Shove, error) {
	nodes := make(map[types.Hash]*core.Shove)
	queue := []types.Hash{from}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		if _, seen := nodes[id]; seen {
			continue
		}
		s, err := w.src.GetShove(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes[id] = s
		for _, p := range s.ParentIDs() {
			if _, seen := nodes[p]; !seen {
				queue = append(queue, p)
			}
		}
	}
	return nodes, nil
}

// topoOrder Kahn 拓扑排序，入度 = 集合内子节点数
func topoOrder(nodes map[types.Hash]*core.Shove, from types.Hash) iter.Seq[*core.Shove] {
	return func(yield func(*core.Shove) bool) {
		pending := make(map[types.Hash]int, len(nodes))
		for _, s := range nodes {
			for _, p := range s.ParentIDs() {
				pending[p]++
			}
		}

		ready := &shoveHeap{}
		heap.Push(ready, nodes[from])
		for ready.Len() > 0 {
			s := heap.Pop(ready).(*core.Shove)
			if !yield(s) {
				return
			}
			for _, p := range s.ParentIDs() {
				pending[p]--
				if pending[p] == 0 {
					heap.Push(ready, nodes[p])
				}
			}
		}
	}
}

// IsAncestor 判断 a 是否是 b 的祖先 (a == b 时为 true)
func (w *Walker) IsAncestor(ctx context.Context, a, b types.Hash) (bool, error) {
	if a.IsZero() {
		return true, nil
	}
	if b.IsZero() {
		return false, nil
	}
	seen := make(map[types.Hash]bool)
	queue := []types.Hash{b}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == a {
			return true, nil
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		s, err := w.src.GetShove(ctx, id)
		if err != nil {
			return false, err
		}
		queue = append(queue, s.ParentIDs()...)
	}
	return false, nil
}

// shoveHeap 时间戳降序，ID 升序
type shoveHeap []*core.Shove

func (h shoveHeap) Len() int { return len(h) }
func (h shoveHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp > h[j].Timestamp
	}
	return h[i].ID() < h[j].ID()
}
func (h shoveHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *shoveHeap) Push(x any)   { *h = append(*h, x.(*core.Shove)) }
func (h *shoveHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
