package rank

import (
	"context"
	"math"
	"testing"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
)

func prefMenu(name string, energy, protein, fat, veg float64) *core.MenuItem {
	return &core.MenuItem{
		Name: name,
		Nutrition: map[string]any{
			core.NutritionEnergy:    energy,
			core.NutritionProtein:   protein,
			core.NutritionFat:       fat,
			core.NutritionVegetable: veg,
		},
	}
}

func TestPreferenceNodeBlend(t *testing.T) {
	history := []*core.MenuItem{
		prefMenu("焼き魚定食", 600, 30, 12, 140),
		prefMenu("豚汁", 620, 28, 14, 160),
	}
	profile := nutrition.BuildPreferenceProfile(history)
	if profile == nil {
		t.Fatal("profile = nil, want non-nil")
	}

	menu := prefMenu("唐揚げ", 610, 29, 13, 150)
	item := core.NewItem(menu, 3)
	item.ModelScore = 0.8
	item.Score = 0.8

	node := &PreferenceNode{Profile: profile}
	out, err := node.Process(context.Background(), nil, []*core.Item{item})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := 0.6*0.8 + 0.4*profile.PreferenceScore(menu)/5.5
	if math.Abs(out[0].Score-want) > 1e-12 {
		t.Fatalf("Score = %v, want %v", out[0].Score, want)
	}
	if out[0].ModelScore != 0.8 {
		t.Fatalf("ModelScore overwritten: %v", out[0].ModelScore)
	}
}

func TestPreferenceNodeNilProfilePassthrough(t *testing.T) {
	item := core.NewItem(prefMenu("うどん", 400, 12, 8, 60), 0)
	item.Score = 0.42

	node := &PreferenceNode{}
	out, err := node.Process(context.Background(), nil, []*core.Item{item})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[0].Score != 0.42 {
		t.Fatalf("Score = %v, want untouched 0.42", out[0].Score)
	}
}
