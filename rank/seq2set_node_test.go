package rank

import (
	"context"
	"testing"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/model"
)

type fixedBias map[string]float64

func (b fixedBias) GetBias(_ context.Context, name string) (float64, error) {
	return b[name], nil
}

func newTestNode(t *testing.T) *Seq2SetNode {
	t.Helper()
	cfg := model.DefaultConfig(8, 5)
	cfg.DModel = 16
	cfg.FFNDim = 32
	cfg.ContextLen = 3
	m, err := model.NewSeq2SetTransformer(cfg, 9)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return &Seq2SetNode{
		Model: m,
		Encode: func(idx int) []float64 {
			vec := make([]float64, cfg.InputDim)
			vec[idx%cfg.InputDim] = 1.0
			return vec
		},
		Context: []int{0, 1},
	}
}

func candidates(n int) []*core.Item {
	items := make([]*core.Item, n)
	for i := range items {
		items[i] = core.NewItem(&core.MenuItem{Name: string(rune('A' + i))}, i)
	}
	return items
}

func TestSeq2SetNodeScoresCandidates(t *testing.T) {
	node := newTestNode(t)
	rctx := &core.RecommendContext{Date: "2025-08-01"}

	items, err := node.Process(context.Background(), rctx, candidates(5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, item := range items {
		if item.ModelScore <= 0 || item.ModelScore >= 1 {
			t.Fatalf("ModelScore for %s = %v, want in (0, 1)", item.Name, item.ModelScore)
		}
		if item.Score != item.ModelScore {
			t.Fatalf("Score %v != ModelScore %v without bias", item.Score, item.ModelScore)
		}
	}
	if _, ok := rctx.Params[AttentionParamKey]; !ok {
		t.Fatal("attention weights not recorded in rctx.Params")
	}
}

func TestSeq2SetNodeEmptyContext(t *testing.T) {
	node := newTestNode(t)
	node.Context = nil
	_, err := node.Process(context.Background(), &core.RecommendContext{}, candidates(2))
	if err == nil {
		t.Fatal("expected error on empty context")
	}
	if !core.IsDataInsufficient(err) {
		t.Fatalf("error = %v, want DATA_INSUFFICIENT", err)
	}
}

func TestSeq2SetNodeBiasAdjustment(t *testing.T) {
	node := newTestNode(t)
	node.Bias = fixedBias{"A": 0.5, "B": -0.5}
	rctx := &core.RecommendContext{BiasStrength: 1.0}

	items, err := node.Process(context.Background(), rctx, candidates(2))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if items[0].Score != items[0].ModelScore+0.5 {
		t.Fatalf("positive bias not applied: score=%v model=%v", items[0].Score, items[0].ModelScore)
	}
	if items[1].Score != items[1].ModelScore-0.5 {
		t.Fatalf("negative bias not applied: score=%v model=%v", items[1].Score, items[1].ModelScore)
	}
}

func TestSeq2SetNodeOutOfVocabCandidate(t *testing.T) {
	node := newTestNode(t)
	unknown := core.NewItem(&core.MenuItem{Name: "新メニュー"}, 99)
	items, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.Item{unknown})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if items[0].ModelScore != 0 || items[0].Score != 0 {
		t.Fatal("out-of-vocab candidate should keep zero score")
	}
}

// 上下文超过窗口时只取最早的 ContextLen 个，不够则右侧零填充。
func TestSeq2SetNodeContextWindowFixed(t *testing.T) {
	node := newTestNode(t)
	node.Context = []int{0, 1, 2, 3, 4, 0, 1, 2}

	seq := node.contextWindow()
	if len(seq) != node.Model.Cfg.ContextLen {
		t.Fatalf("window len = %d, want %d", len(seq), node.Model.Cfg.ContextLen)
	}

	node.Context = []int{0}
	seq = node.contextWindow()
	if len(seq) != node.Model.Cfg.ContextLen {
		t.Fatalf("padded window len = %d, want %d", len(seq), node.Model.Cfg.ContextLen)
	}
	for _, v := range seq[1] {
		if v != 0 {
			t.Fatal("padding rows must be zero vectors")
		}
	}
}
