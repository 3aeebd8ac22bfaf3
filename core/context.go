package core

import "github.com/shokudo/menukit/pkg/utils"

// NutritionTarget 是营养目标配置：四个命名数值，来自外部配置/用户设置。
type NutritionTarget struct {
	Protein float64 `json:"protein" yaml:"protein"` // g
	Energy  float64 `json:"energy" yaml:"energy"`   // kcal
	Fat     float64 `json:"fat" yaml:"fat"`         // g
	Carbs   float64 `json:"carbs" yaml:"carbs"`     // g
}

// DefaultNutritionTarget 是未配置时的单品目标（食堂单品的经验值）。
func DefaultNutritionTarget() NutritionTarget {
	return NutritionTarget{Protein: 20, Energy: 400, Fat: 10, Carbs: 50}
}

// RecommendContext 承载一次推荐请求的用户/日期/约束信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string
	Date   string // 推荐对象日 YYYY-MM-DD
	TopK   int

	// Target 营养目标；零值时由节点回退到 DefaultNutritionTarget
	Target NutritionTarget

	// ExcludeAllergens 过敏原排除列表（CommonAllergens 的子集）
	ExcludeAllergens []string

	// BiasStrength 偏好偏置的混合强度，[0,1]；0 表示不启用
	BiasStrength float64

	// Labels 用户级标签，可驱动链路行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
