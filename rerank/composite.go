// Package rerank 在模型打分之后做多目标重排：
// 复合加权、贪心整套寻优、Top-N 截断与解释标签。
package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
	"github.com/shokudo/menukit/pipeline"
	"github.com/shokudo/menukit/pkg/utils"
)

// Weights 是复合分的三路权重。
type Weights struct {
	Model     float64 `json:"model" yaml:"model"`
	Diversity float64 `json:"diversity" yaml:"diversity"`
	Nutrition float64 `json:"nutrition" yaml:"nutrition"`
}

// DefaultWeights 返回默认权重：模型 0.5、多样性 0.2、营养 0.3。
func DefaultWeights() Weights {
	return Weights{Model: 0.5, Diversity: 0.2, Nutrition: 0.3}
}

// CompositeNode 按 复合分 = (wm·模型 + wd·多样性 + wn·营养) / Σw 重排。
//
// 约定：
//   - Σw == 0 时按 1.0 处理，等价于直接相加，不视为错误
//   - 第一个条目的多样性取中性值 0.5，其后相对已累计的条目计算
//   - 排序稳定，分数相同保持输入顺序
type CompositeNode struct {
	Weights Weights
	Matcher *nutrition.NutritionMatcher

	diversity nutrition.DiversityScorer
}

// NewCompositeNode 以默认权重与默认营养目标创建。
func NewCompositeNode() *CompositeNode {
	return &CompositeNode{
		Weights: DefaultWeights(),
		Matcher: nutrition.NewMatcher(),
	}
}

func (n *CompositeNode) Name() string {
	return "rerank.composite"
}

func (n *CompositeNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *CompositeNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	matcher := n.Matcher
	if matcher == nil {
		matcher = nutrition.NewMatcher()
	}
	if rctx != nil && rctx.Target != (core.NutritionTarget{}) {
		m := *matcher
		m.Target = rctx.Target
		matcher = &m
	}

	total := n.Weights.Model + n.Weights.Diversity + n.Weights.Nutrition
	if total == 0 {
		total = 1.0
	}

	kept := make([]*core.Item, 0, len(items))
	var accumulated []*core.MenuItem
	for _, item := range items {
		if item == nil {
			continue
		}
		kept = append(kept, item)

		diversityScore := 0.5 // 第一个条目取中性值
		if len(accumulated) > 0 {
			diversityScore = n.diversity.Score(append(accumulated, item.Menu))
		}
		nutritionScore := matcher.MatchScore(item.Menu)

		item.DiversityScore = diversityScore
		item.NutritionScore = nutritionScore
		item.CompositeScore = (n.Weights.Model*item.ModelScore +
			n.Weights.Diversity*diversityScore +
			n.Weights.Nutrition*nutritionScore) / total
		item.Score = item.CompositeScore
		item.PutLabel("rerank", utils.Label{Value: "composite", Source: n.Name()})

		accumulated = append(accumulated, item.Menu)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CompositeScore > kept[j].CompositeScore
	})
	for rank, item := range kept {
		item.Rank = rank + 1
	}
	return kept, nil
}

// Validate 检查权重是否全部非负。
func (w Weights) Validate() error {
	if w.Model < 0 || w.Diversity < 0 || w.Nutrition < 0 {
		return core.NewDomainError(core.ModuleRerank, core.ErrorCodeConfiguration,
			fmt.Sprintf("rerank: negative weight %+v", w))
	}
	return nil
}
