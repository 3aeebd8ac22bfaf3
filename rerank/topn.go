package rerank

import (
	"context"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在重排后截取前 N 个菜单。
type TopNNode struct {
	// N 要保留的数量。N <= 0 表示不截断。
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
