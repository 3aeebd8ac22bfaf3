package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/shokudo/menukit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("nutrition", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
	return env, err
}

func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Eval 是规则 DSL 解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 分数：item.model_score > 0.7
//   - 营养：nutrition["エネルギー(kcal)"] < 500.0
//   - 名称：item.name.contains("揚げ")
//   - 标签：label.reason != null
//   - 组合：item.model_score > 0.5 && nutrition["たんぱく質(g)"] >= 15.0
//
// 营养值在求值前已统一转换为 double，缺失或不可解析的键不会出现在 map 中，
// 用 `"キー" in nutrition` 检查存在性。
type Eval struct {
	item *core.Item
	rctx *core.RecommendContext
	env  *cel.Env
}

// NewEval 创建一个新的解释器。
func NewEval(item *core.Item, rctx *core.RecommendContext) *Eval {
	env, _ := getCELEnv()
	return &Eval{item: item, rctx: rctx, env: env}
}

// Evaluate 解析并执行表达式，返回布尔结果。空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("program error: %v", err)
	}

	out, _, err := prg.Eval(e.buildInput())
	if err != nil {
		// 访问不存在的 key 时 CEL 返回错误，存在性请用 in 或 != null 检查
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *Eval) buildInput() map[string]interface{} {
	labels := make(map[string]interface{})
	labelAccessor := make(map[string]interface{})
	for k, v := range e.item.Labels {
		labels[k] = map[string]interface{}{"value": v.Value, "source": v.Source}
		labelAccessor[k] = v.Value
	}

	nutrition := make(map[string]interface{})
	if e.item.Menu != nil {
		for key := range e.item.Menu.Nutrition {
			if v, ok := e.item.Menu.NutritionValue(key); ok {
				nutrition[key] = v
			}
		}
	}

	item := map[string]interface{}{
		"name":            e.item.Name,
		"index":           e.item.Index,
		"score":           e.item.Score,
		"model_score":     e.item.ModelScore,
		"diversity_score": e.item.DiversityScore,
		"nutrition_score": e.item.NutritionScore,
		"labels":          labels,
	}

	rctx := map[string]interface{}{
		"user_id": e.rctx.UserID,
		"date":    e.rctx.Date,
		"top_k":   e.rctx.TopK,
		"params":  e.rctx.Params,
	}

	return map[string]interface{}{
		"item":      item,
		"label":     labelAccessor,
		"nutrition": nutrition,
		"rctx":      rctx,
	}
}
