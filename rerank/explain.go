package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
	"github.com/shokudo/menukit/pipeline"
	"github.com/shokudo/menukit/pkg/utils"
)

// 解释标签，阈值来自当天候选池的分位数
const (
	reasonHighProtein = "タンパク質豊富"
	reasonGoodProtein = "良好なタンパク質"
	reasonLowCalorie  = "低カロリー"
	reasonHearty      = "ボリューム満点"
	reasonVeggie      = "野菜たっぷり"
	reasonBalanced    = "バランス良好"
)

// maxReasonsPerItem 每个菜最多挂两个理由，多了反而没有信息量
const maxReasonsPerItem = 2

// ExplainNode 是后处理 Node，按候选池分位数为每个菜单挂解释标签。
// 标签写进 item 的 "reason" Label，多个理由用 '|' 累积。
type ExplainNode struct {
	Stats nutrition.PoolStats
}

func (n *ExplainNode) Name() string {
	return "rerank.explain"
}

func (n *ExplainNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *ExplainNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, item := range items {
		if item == nil {
			continue
		}
		for _, reason := range ItemReasons(item.Menu, n.Stats) {
			item.PutLabel("reason", utils.Label{Value: reason, Source: n.Name()})
		}
	}
	return items, nil
}

// ItemReasons 根据营养值与池分位数生成理由标签，最多两个。
func ItemReasons(menu *core.MenuItem, stats nutrition.PoolStats) []string {
	var reasons []string
	if menu != nil {
		if protein, ok := menu.NutritionValue(core.NutritionProtein); ok {
			if protein > stats.Protein90 {
				reasons = append(reasons, reasonHighProtein)
			} else if protein > stats.Protein75 {
				reasons = append(reasons, reasonGoodProtein)
			}
		}
		if energy, ok := menu.NutritionValue(core.NutritionEnergy); ok {
			if energy < stats.Energy25 {
				reasons = append(reasons, reasonLowCalorie)
			} else if energy > stats.Energy75 {
				reasons = append(reasons, reasonHearty)
			}
		}
		if veg, ok := menu.NutritionValue(core.NutritionVegetable); ok && veg > stats.Veg75 {
			reasons = append(reasons, reasonVeggie)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, reasonBalanced)
	}
	if len(reasons) > maxReasonsPerItem {
		reasons = reasons[:maxReasonsPerItem]
	}
	return reasons
}

// SetReason 生成整套推荐的一句话说明，按平均复合分分档。
func SetReason(items []*core.Item) string {
	if len(items) == 0 {
		return ""
	}
	avg := 0.0
	names := make([]string, 0, len(items))
	for _, item := range items {
		avg += item.CompositeScore
		names = append(names, item.Name)
	}
	avg /= float64(len(items))

	joined := strings.Join(names, "、")
	switch {
	case avg > 0.9:
		return fmt.Sprintf("%s の組み合わせは栄養バランス・多様性ともに非常に良好です", joined)
	case avg > 0.7:
		return fmt.Sprintf("%s の組み合わせはバランスの取れた構成です", joined)
	default:
		return fmt.Sprintf("%s を本日のおすすめセットとして提案します", joined)
	}
}
