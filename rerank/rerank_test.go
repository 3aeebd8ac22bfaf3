package rerank

import (
	"context"
	"math"
	"testing"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
)

func scored(name string, modelScore, energy, protein float64) *core.Item {
	item := core.NewItem(&core.MenuItem{Name: name, Nutrition: map[string]any{
		core.NutritionEnergy:  energy,
		core.NutritionProtein: protein,
		core.NutritionFat:     10.0,
		core.NutritionCarbs:   50.0,
	}}, 0)
	item.ModelScore = modelScore
	item.Score = modelScore
	return item
}

func TestCompositeModelOnlyPreservesRanking(t *testing.T) {
	node := NewCompositeNode()
	node.Weights = Weights{Model: 1, Diversity: 0, Nutrition: 0}

	items := []*core.Item{
		scored("a", 0.9, 400, 20),
		scored("b", 0.7, 100, 5),
		scored("c", 0.8, 800, 40),
	}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	wantOrder := []string{"a", "c", "b"}
	for i, want := range wantOrder {
		if out[i].Name != want {
			t.Fatalf("position %d = %s, want %s", i, out[i].Name, want)
		}
		if math.Abs(out[i].CompositeScore-out[i].ModelScore) > 1e-9 {
			t.Fatalf("model-only composite %v != model score %v", out[i].CompositeScore, out[i].ModelScore)
		}
	}
}

// 权重和为 1 时，复合分是三个 [0,1] 分量的凸组合，必然落在 [0,1]。
func TestCompositeConvexityBound(t *testing.T) {
	node := NewCompositeNode()
	items := []*core.Item{
		scored("a", 1.0, 400, 20),
		scored("b", 0.0, 50, 1),
		scored("c", 0.5, 900, 45),
	}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, item := range out {
		if item.CompositeScore < 0 || item.CompositeScore > 1 {
			t.Fatalf("composite score %v out of [0,1] for %s", item.CompositeScore, item.Name)
		}
	}
}

func TestCompositeZeroWeightsSoftFallback(t *testing.T) {
	node := NewCompositeNode()
	node.Weights = Weights{}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.Item{
		scored("a", 0.4, 400, 20),
	})
	if err != nil {
		t.Fatalf("zero weights must not error: %v", err)
	}
	// Σw=0 按 1.0 处理，三路权重全零时复合分为 0
	if out[0].CompositeScore != 0 {
		t.Fatalf("composite = %v, want 0", out[0].CompositeScore)
	}
}

func TestCompositeFirstItemNeutralDiversity(t *testing.T) {
	node := NewCompositeNode()
	out, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.Item{
		scored("a", 0.9, 400, 20),
		scored("b", 0.1, 400, 20),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	var first *core.Item
	for _, item := range out {
		if item.Name == "a" {
			first = item
		}
	}
	if first.DiversityScore != 0.5 {
		t.Fatalf("first item diversity = %v, want 0.5", first.DiversityScore)
	}
}

func TestGreedySetDeterministic(t *testing.T) {
	items := func() []*core.Item {
		return []*core.Item{
			scored("主菜", 0.9, 500, 25),
			scored("副菜", 0.8, 150, 8),
			scored("汁物", 0.7, 80, 4),
			scored("ごはん", 0.6, 250, 4),
			scored("デザート", 0.5, 200, 2),
		}
	}
	node := NewGreedySetNode(3)

	first, err := node.Process(context.Background(), &core.RecommendContext{}, items())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	second, _ := node.Process(context.Background(), &core.RecommendContext{}, items())

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("set sizes = %d/%d, want 3", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("greedy search not deterministic: %s vs %s at %d", first[i].Name, second[i].Name, i)
		}
	}
	if first[0].Name != "主菜" {
		t.Fatalf("seed = %s, want highest individual score 主菜", first[0].Name)
	}
}

func TestGreedySetRespectsPoolSize(t *testing.T) {
	node := NewGreedySetNode(2)
	node.PoolSize = 2
	items := []*core.Item{
		scored("a", 0.9, 400, 20),
		scored("b", 0.8, 300, 15),
		scored("c", 0.7, 200, 10), // 池外
	}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, item := range out {
		if item.Name == "c" {
			t.Fatal("item outside the pool must never be chosen")
		}
	}
}

func TestGreedySetUsesProfileEnergyMedian(t *testing.T) {
	items := func() []*core.Item {
		return []*core.Item{
			scored("種", 0.9, 600, 21),
			scored("軽め", 0.5, 150, 21),
			scored("重め", 0.5, 700, 21),
		}
	}

	// 默认理想 400kcal：{600,150} 平均 375 更接近，选 軽め
	plain := NewGreedySetNode(2)
	out, err := plain.Process(context.Background(), &core.RecommendContext{}, items())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[1].Name != "軽め" {
		t.Fatalf("default second pick = %s, want 軽め", out[1].Name)
	}

	// 历史能量中位数 650：{600,700} 平均恰好命中，选 重め
	hearty := NewGreedySetNode(2)
	hearty.Profile = &nutrition.PreferenceProfile{Energy: nutrition.Stat{Median: 650}}
	out, err = hearty.Process(context.Background(), &core.RecommendContext{}, items())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[1].Name != "重め" {
		t.Fatalf("profile second pick = %s, want 重め", out[1].Name)
	}
}

func TestTopNNode(t *testing.T) {
	node := &TopNNode{N: 2}
	items := []*core.Item{scored("a", 0.9, 0, 0), scored("b", 0.8, 0, 0), scored("c", 0.7, 0, 0)}
	out, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	all, _ := (&TopNNode{}).Process(context.Background(), nil, items)
	if len(all) != 3 {
		t.Fatalf("N<=0 should not truncate, got %d", len(all))
	}
}

func TestItemReasons(t *testing.T) {
	stats := nutrition.PoolStats{Protein75: 15, Protein90: 25, Energy25: 150, Energy75: 500, Veg75: 80}

	tests := []struct {
		name string
		item *core.MenuItem
		want string
	}{
		{
			"高蛋白",
			&core.MenuItem{Nutrition: map[string]any{core.NutritionProtein: 30.0}},
			reasonHighProtein,
		},
		{
			"良好蛋白",
			&core.MenuItem{Nutrition: map[string]any{core.NutritionProtein: 20.0}},
			reasonGoodProtein,
		},
		{
			"低热量",
			&core.MenuItem{Nutrition: map[string]any{core.NutritionEnergy: 100.0}},
			reasonLowCalorie,
		},
		{
			"大分量",
			&core.MenuItem{Nutrition: map[string]any{core.NutritionEnergy: 700.0}},
			reasonHearty,
		},
		{
			"默认",
			&core.MenuItem{Nutrition: map[string]any{core.NutritionEnergy: 300.0}},
			reasonBalanced,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := ItemReasons(tt.item, stats)
			if reasons[0] != tt.want {
				t.Fatalf("first reason = %s, want %s", reasons[0], tt.want)
			}
		})
	}
}

func TestItemReasonsCapped(t *testing.T) {
	stats := nutrition.PoolStats{Protein75: 15, Protein90: 25, Energy25: 150, Energy75: 500, Veg75: 80}
	rich := &core.MenuItem{Nutrition: map[string]any{
		core.NutritionProtein:   30.0,
		core.NutritionEnergy:    700.0,
		core.NutritionVegetable: 120.0,
	}}
	reasons := ItemReasons(rich, stats)
	if len(reasons) != maxReasonsPerItem {
		t.Fatalf("reasons = %v, want capped at %d", reasons, maxReasonsPerItem)
	}
}

func TestSetReasonTiers(t *testing.T) {
	make3 := func(score float64) []*core.Item {
		items := []*core.Item{scored("a", 0, 0, 0), scored("b", 0, 0, 0)}
		for _, it := range items {
			it.CompositeScore = score
		}
		return items
	}
	if r := SetReason(make3(0.95)); r == "" || r == SetReason(make3(0.75)) {
		t.Fatal("top tier reason should differ from middle tier")
	}
	if r := SetReason(make3(0.5)); r == SetReason(make3(0.75)) {
		t.Fatal("middle tier reason should differ from default tier")
	}
	if SetReason(nil) != "" {
		t.Fatal("empty set reason should be empty string")
	}
}
