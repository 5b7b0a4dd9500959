package history

import (
	"context"
	"slices"

	"pocket/pkg/core"
	"pocket/pkg/types"
)

// GraphNode 图中的一个 Shove 及其相邻关系
type GraphNode struct {
	Shove    *core.Shove
	Parents  []types.Hash
	Children []types.Hash // 仅统计 from 可达范围内的子节点
	IsFork   bool         // 有多个子节点
	IsMerge  bool         // 有多个父节点
	Lane     int          // 渲染时所在的列
}

// Graph 返回与 Log 相同顺序的节点列表
func (w *Walker) Graph(ctx context.Context, from types.Hash) ([]GraphNode, error) {
	if from.IsZero() {
		return nil, nil
	}
	nodes, err := w.collect(ctx, from)
	if err != nil {
		return nil, err
	}

	children := make(map[types.Hash][]types.Hash, len(nodes))
	for id, s := range nodes {
		for _, p := range s.ParentIDs() {
			children[p] = append(children[p], id)
		}
	}

	var out []GraphNode
	var lanes []types.Hash // 每列等待的下一个节点
	for s := range topoOrder(nodes, from) {
		id := s.ID()
		kids := children[id]
		slices.Sort(kids)

		lane := assignLane(&lanes, id)
		parents := s.ParentIDs()
		// 第一父节点沿用本列，其余父节点占用新列
		if len(parents) > 0 {
			lanes[lane] = parents[0]
			for _, p := range parents[1:] {
				if !slices.Contains(lanes, p) {
					lanes = append(lanes, p)
				}
			}
		} else {
			lanes[lane] = ""
		}
		// 同一节点可能被多列等待 (分叉点)，合并为一列
		for i := range lanes {
			if i != lane && lanes[i] != "" && lanes[i] == lanes[lane] {
				lanes[i] = ""
			}
		}

		out = append(out, GraphNode{
			Shove:    s,
			Parents:  parents,
			Children: kids,
			IsFork:   len(kids) > 1,
			IsMerge:  len(parents) > 1,
			Lane:     lane,
		})
	}
	return out, nil
}

// assignLane 找到等待 id 的列，没有则占用第一个空列
func assignLane(lanes *[]types.Hash, id types.Hash) int {
	for i, h := range *lanes {
		if h == id {
			return i
		}
	}
	for i, h := range *lanes {
		if h == "" {
			(*lanes)[i] = id
			return i
		}
	}
	*lanes = append(*lanes, id)
	return len(*lanes) - 1
}
