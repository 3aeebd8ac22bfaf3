package filter

import (
	"context"

	"github.com/shokudo/menukit/core"
)

// AllergenFilter 剔除标注了任一排除过敏原的菜单。
// 排除列表来自请求上下文，空列表时不过滤任何菜单。
// 过敏原在菜单数据里以 "◯" 标记，缺失或 "－" 视为不含。
type AllergenFilter struct{}

func (AllergenFilter) Name() string {
	return "filter.allergen"
}

func (AllergenFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if rctx == nil || len(rctx.ExcludeAllergens) == 0 || item.Menu == nil {
		return false, nil
	}
	for _, allergen := range rctx.ExcludeAllergens {
		if item.Menu.HasAllergen(allergen) {
			return true, nil
		}
	}
	return false, nil
}
