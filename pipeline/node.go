package pipeline

import (
	"context"

	"github.com/shokudo/menukit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 候选生成：从当日目录构建候选集
	KindFilter      Kind = "filter"      // 过滤阶段：剔除过敏原/规则命中的候选
	KindRank        Kind = "rank"        // 排序阶段：模型打分
	KindReRank      Kind = "rerank"      // 重排阶段：复合分/贪心组合搜索
	KindPostProcess Kind = "postprocess" // 后处理阶段：解释生成、结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 items -> 输出 items”的形态，方便过滤截断、重排等操作。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
