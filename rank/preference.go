package rank

import (
	"context"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
	"github.com/shokudo/menukit/pipeline"
)

// preferenceScoreScale 是偏好分的名义满分（各分量权重之和 1.5+2.0+1.2+0.8），
// 混合前先归一化到 [0, 1] 量级。
const preferenceScoreScale = 5.5

// PreferenceNode 把用户历史偏好混入模型分：
//
//	score = ModelWeight·模型分 + PreferenceWeight·偏好分/5.5
//
// 无画像（Profile 为 nil）时恒等透传。ModelScore 保留原始模型概率，
// 后续综合分节点读取的是混合后的 Score。
type PreferenceNode struct {
	Profile *nutrition.PreferenceProfile

	// ModelWeight / PreferenceWeight 两路权重，双零时取默认 0.6/0.4
	ModelWeight      float64
	PreferenceWeight float64
}

func (n *PreferenceNode) Name() string {
	return "rank.preference"
}

func (n *PreferenceNode) Kind() pipeline.Kind {
	return pipeline.KindRank
}

func (n *PreferenceNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Profile == nil || len(items) == 0 {
		return items, nil
	}

	wm, wp := n.ModelWeight, n.PreferenceWeight
	if wm == 0 && wp == 0 {
		wm, wp = 0.6, 0.4
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		pref := n.Profile.PreferenceScore(item.Menu)
		item.Score = wm*item.Score + wp*pref/preferenceScoreScale
	}
	return items, nil
}
