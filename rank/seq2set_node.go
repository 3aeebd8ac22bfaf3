// Package rank 用训练好的模型为候选菜单打基础分。
package rank

import (
	"context"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/model"
	"github.com/shokudo/menukit/pipeline"
)

// AttentionParamKey 是注意力权重在请求参数里的键，
// 值类型为 [][][][]float64（层 × 头 × query × key）。
const AttentionParamKey = "seq2set_attention"

// Seq2SetNode 是模型打分 Node。
//
// 行为：
//   - 把近期被选菜单编码成固定长度的上下文窗口（截断/零填充到 ContextLen）
//   - 对整个词表做一次前向，候选菜单取各自索引位上的 σ(logit) 作为 ModelScore
//   - 可选地叠加口味偏置：score += BiasStrength · bias，bias ∈ [-0.5, 0.5]
//   - 注意力权重写入 rctx.Params，供解释层消费
type Seq2SetNode struct {
	Model *model.Seq2SetTransformer

	// Encode 把词表索引映射为编码向量
	Encode func(idx int) []float64

	// Context 是近期被选菜单的索引，按时间先后排列
	Context []int

	// Bias 为空时不做偏置调整
	Bias core.BiasSource
}

func (n *Seq2SetNode) Name() string {
	return "rank.seq2set"
}

func (n *Seq2SetNode) Kind() pipeline.Kind {
	return pipeline.KindRank
}

func (n *Seq2SetNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	if len(n.Context) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataInsufficient,
			"rank: empty selection context")
	}

	seq := n.contextWindow()
	logits, attentions, err := n.Model.Forward(seq, false)
	if err != nil {
		return nil, err
	}
	if rctx != nil {
		if rctx.Params == nil {
			rctx.Params = make(map[string]any)
		}
		rctx.Params[AttentionParamKey] = attentions
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		if item.Index < 0 || item.Index >= len(logits) {
			// 词表外的新菜拿不到模型分，保持零分由后续节点处理
			continue
		}
		item.ModelScore = model.Sigmoid(logits[item.Index])
		item.Score = item.ModelScore

		if n.Bias != nil && rctx != nil && rctx.BiasStrength > 0 {
			bias, err := n.Bias.GetBias(ctx, item.Name)
			if err != nil {
				continue
			}
			item.Score += rctx.BiasStrength * core.ClampBias(bias)
		}
	}
	return items, nil
}

// contextWindow 截断/零填充到模型的固定推理窗口。
func (n *Seq2SetNode) contextWindow() [][]float64 {
	maxLen := n.Model.Cfg.ContextLen
	dim := n.Model.Cfg.InputDim

	seq := make([][]float64, 0, maxLen)
	for _, idx := range n.Context {
		if len(seq) == maxLen {
			break
		}
		vec := n.Encode(idx)
		if vec == nil {
			vec = make([]float64, dim)
		}
		seq = append(seq, vec)
	}
	for len(seq) < maxLen {
		seq = append(seq, make([]float64, dim))
	}
	return seq
}
