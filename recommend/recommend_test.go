package recommend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shokudo/menukit/artifact"
	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
	"github.com/shokudo/menukit/model"
)

func testMenu(name string, energy, protein, fat, carbs float64) *core.MenuItem {
	return &core.MenuItem{
		Name: name,
		Nutrition: map[string]any{
			core.NutritionEnergy:  energy,
			core.NutritionProtein: protein,
			core.NutritionFat:     fat,
			core.NutritionCarbs:   carbs,
		},
	}
}

// newTestRecommender は 10 日分の固定目録と選択履歴から推薦サービスを組み立てる。
func newTestRecommender(t *testing.T) *Recommender {
	t.Helper()

	menus := []*core.MenuItem{
		testMenu("カレーライス", 650, 18, 20, 90),
		testMenu("焼き魚定食", 450, 28, 12, 40),
		testMenu("野菜炒め", 200, 8, 10, 15),
		testMenu("味噌汁", 60, 3, 2, 6),
		testMenu("冷や奴", 90, 7, 5, 3),
		testMenu("唐揚げ", 350, 20, 22, 12),
	}

	catalogs := NewMemoryCatalogSource()
	selections := NewMemorySelectionSource()
	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2024-06-%02d", day)
		catalogs.Add(&core.Catalog{Date: date, Items: menus})
		selections.Add(date, []string{menus[day%len(menus)].Name, menus[(day+2)%len(menus)].Name})
	}

	vocab := core.NewVocabulary("test")
	for _, m := range menus {
		vocab.Add(m.Name)
	}

	enc := encoder.New(encoder.WithTextDim(4))
	if err := enc.Fit(menus); err != nil {
		t.Fatal(err)
	}

	cfg := model.Config{
		InputDim:   enc.Dim(),
		DModel:     16,
		Heads:      2,
		Layers:     1,
		FFNDim:     32,
		Dropout:    0,
		NumMenus:   vocab.Size(),
		ContextLen: 3,
	}
	m, err := model.NewSeq2SetTransformer(cfg, 7)
	if err != nil {
		t.Fatal(err)
	}

	art := artifact.New("test", vocab, enc, m)
	r, err := New(art, catalogs, selections)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRecommendForDate(t *testing.T) {
	r := newTestRecommender(t)
	rctx := &core.RecommendContext{Date: "2024-06-08", TopK: 3}

	result, err := r.RecommendForDate(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Date != "2024-06-08" {
		t.Errorf("date = %s", result.Date)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	for i, item := range result.Items {
		if item.Rank != i+1 {
			t.Errorf("item %d rank = %d", i, item.Rank)
		}
		if len(result.Reasons[item.Name]) == 0 {
			t.Errorf("item %s has no reasons", item.Name)
		}
	}
	if result.SetReason == "" {
		t.Error("empty set reason")
	}
	if result.Summary.AvgEnergy <= 0 {
		t.Errorf("summary energy = %v", result.Summary.AvgEnergy)
	}
}

func TestRecommendForDateErrors(t *testing.T) {
	r := newTestRecommender(t)
	ctx := context.Background()

	_, err := r.RecommendForDate(ctx, &core.RecommendContext{Date: "2030-01-01"})
	if !core.IsMissingDate(err) {
		t.Fatalf("expected missing date, got %v", err)
	}

	_, err = r.RecommendForDate(ctx, &core.RecommendContext{})
	if !core.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	// 先頭日は過去の選択が無く、文脈を構築できない
	_, err = r.RecommendForDate(ctx, &core.RecommendContext{Date: "2024-06-01"})
	if !core.IsDataInsufficient(err) {
		t.Fatalf("expected data insufficient, got %v", err)
	}
}

func TestRecommendGreedyStrategy(t *testing.T) {
	r := newTestRecommender(t)
	r.Params.Strategy = StrategyGreedy
	rctx := &core.RecommendContext{Date: "2024-06-08", TopK: 4}

	result, err := r.RecommendForDate(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 4 {
		t.Fatalf("items = %d, want 4", len(result.Items))
	}

	// 同じ入力なら同じ出力
	again, err := r.RecommendForDate(context.Background(), &core.RecommendContext{Date: "2024-06-08", TopK: 4})
	if err != nil {
		t.Fatal(err)
	}
	for i := range result.Items {
		if result.Items[i].Name != again.Items[i].Name {
			t.Fatalf("non-deterministic: %v vs %v", result.Items[i].Name, again.Items[i].Name)
		}
	}
}

func TestRecommendAllergenExclusion(t *testing.T) {
	r := newTestRecommender(t)

	// 目録を差し替えて卵アレルゲン付きの一品を混ぜる
	egg := testMenu("卵焼き", 150, 9, 10, 2)
	egg.Nutrition["卵"] = core.AllergenPresent
	catalogs := r.Catalogs.(*MemoryCatalogSource)
	catalog, _ := catalogs.GetCatalog(context.Background(), "2024-06-08")
	catalogs.Add(&core.Catalog{Date: "2024-06-08", Items: append([]*core.MenuItem{egg}, catalog.Items...)})

	rctx := &core.RecommendContext{
		Date:             "2024-06-08",
		TopK:             10,
		ExcludeAllergens: []string{"卵"},
	}
	result, err := r.RecommendForDate(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range result.Items {
		if item.Name == "卵焼き" {
			t.Fatal("excluded allergen passed the filter")
		}
	}
}

func TestBatchGenerate(t *testing.T) {
	r := newTestRecommender(t)

	results, err := r.BatchGenerate(context.Background(), core.RecommendContext{TopK: 3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 先頭日は文脈不足でスキップされる
	if len(results) == 0 || len(results) >= 10 {
		t.Fatalf("results = %d", len(results))
	}
	if _, ok := results["2024-06-01"]; ok {
		t.Error("first date should have been skipped")
	}
	for date, result := range results {
		if len(result.Items) != 3 {
			t.Errorf("%s: items = %d", date, len(result.Items))
		}
	}
}

func TestLoadDataDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "menus"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "history"), 0o755); err != nil {
		t.Fatal(err)
	}

	menuJSON := `{"menus":[
        {"name":"カレーライス","エネルギー(kcal)":"650","たんぱく質(g)":"18.0"},
        {"name":"味噌汁","エネルギー(kcal)":"60","たんぱく質(g)":"3.0"}
    ]}`
	historyJSON := `{"selectedMenus":[{"name":"カレーライス"}]}`
	legacyHistoryJSON := `{"eaten":["味噌汁"]}`

	writeFile(t, filepath.Join(dir, "menus", "menus_2024-06-01.json"), menuJSON)
	writeFile(t, filepath.Join(dir, "history", "2024-06-01.json"), historyJSON)
	writeFile(t, filepath.Join(dir, "menus", "menus_2024-06-02.json"), menuJSON)
	writeFile(t, filepath.Join(dir, "history", "2024-06-02.json"), legacyHistoryJSON)
	// 履歴の無い日は除外される
	writeFile(t, filepath.Join(dir, "menus", "menus_2024-06-03.json"), menuJSON)

	catalogs, selections, err := LoadDataDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	dates, err := catalogs.Dates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 {
		t.Fatalf("dates = %v", dates)
	}

	catalog, err := catalogs.GetCatalog(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.Items) != 2 {
		t.Fatalf("items = %d", len(catalog.Items))
	}
	if v, ok := catalog.Items[0].NutritionValue(core.NutritionEnergy); !ok || v != 650 {
		t.Errorf("energy = %v, %v", v, ok)
	}

	names, _ := selections.GetSelectedNames(context.Background(), "2024-06-01")
	if len(names) != 1 || names[0] != "カレーライス" {
		t.Errorf("selections = %v", names)
	}
	names, _ = selections.GetSelectedNames(context.Background(), "2024-06-02")
	if len(names) != 1 || names[0] != "味噌汁" {
		t.Errorf("legacy selections = %v", names)
	}

	if _, err := catalogs.GetCatalog(context.Background(), "2024-06-03"); !core.IsMissingDate(err) {
		t.Fatalf("expected missing date, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRecommendForDateKeepsRequestContextIntact(t *testing.T) {
	r := newTestRecommender(t)
	r.Params.TopK = 3
	r.Params.BiasStrength = 0.3
	r.Params.ExcludeAllergens = []string{"卵"}

	rctx := &core.RecommendContext{Date: "2024-06-08"}
	result, err := r.RecommendForDate(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want service default 3", len(result.Items))
	}

	// 服务级默认只在请求处理内部生效，调用方的上下文保持原样
	if rctx.TopK != 0 {
		t.Errorf("rctx.TopK = %d, want 0", rctx.TopK)
	}
	if rctx.BiasStrength != 0 {
		t.Errorf("rctx.BiasStrength = %v, want 0", rctx.BiasStrength)
	}
	if rctx.ExcludeAllergens != nil {
		t.Errorf("rctx.ExcludeAllergens = %v, want nil", rctx.ExcludeAllergens)
	}
}
