package filter

import (
	"context"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/pkg/dsl"
)

// RuleFilter 基于 CEL 表达式的规则过滤器。
// Expr 为保留条件：表达式求值为 false 的菜单被过滤。
//
// 示例：
//   - `nutrition["エネルギー(kcal)"] < 600.0` 只保留低热量菜
//   - `!item.name.contains("揚げ")` 排除油炸菜
type RuleFilter struct {
	// RuleName 用于过滤标签的来源标识，空时用默认名
	RuleName string
	// Expr 是保留条件表达式
	Expr string
}

func (f *RuleFilter) Name() string {
	if f.RuleName != "" {
		return "filter.rule." + f.RuleName
	}
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	keep, err := dsl.NewEval(item, rctx).Evaluate(f.Expr)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
