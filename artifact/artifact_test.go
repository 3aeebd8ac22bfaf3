package artifact

import (
	"path/filepath"
	"testing"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
	"github.com/shokudo/menukit/model"
)

func fixture(t *testing.T) (*core.Vocabulary, *encoder.MenuEncoder, *model.Seq2SetTransformer) {
	t.Helper()

	vocab := core.NewVocabulary("v1")
	names := []string{"鶏の唐揚げ", "味噌汁", "白ごはん"}
	corpus := make([]*core.MenuItem, 0, len(names))
	for _, name := range names {
		vocab.Add(name)
		corpus = append(corpus, &core.MenuItem{Name: name, Nutrition: map[string]any{
			core.NutritionEnergy: "300",
		}})
	}
	enc := encoder.New()
	if err := enc.Fit(corpus); err != nil {
		t.Fatalf("encoder fit: %v", err)
	}

	cfg := model.DefaultConfig(enc.Dim(), vocab.Size())
	cfg.DModel = 16
	cfg.FFNDim = 32
	m, err := model.NewSeq2SetTransformer(cfg, 5)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return vocab, enc, m
}

func TestArtifactRoundTrip(t *testing.T) {
	vocab, enc, m := fixture(t)
	path := filepath.Join(t.TempDir(), "artifact.json")

	if err := New("v1", vocab, enc, m).Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Vocabulary.Size() != vocab.Size() {
		t.Fatalf("vocab size = %d, want %d", loaded.Vocabulary.Size(), vocab.Size())
	}

	// 加载后的模型必须给出与保存前一致的推理结果
	seq := make([][]float64, 2)
	for i := range seq {
		seq[i] = make([]float64, m.Cfg.InputDim)
		seq[i][i] = 1.0
	}
	want, _, err := m.Forward(seq, false)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	got, _, err := loaded.Model.Forward(seq, false)
	if err != nil {
		t.Fatalf("loaded Forward: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("logit[%d] = %v after reload, want %v", i, got[i], want[i])
		}
	}

	// 编码器可重建且维度一致
	restored, err := loaded.Encoder()
	if err != nil {
		t.Fatalf("Encoder: %v", err)
	}
	if restored.Dim() != m.Cfg.InputDim {
		t.Fatalf("restored encoder dim = %d, want %d", restored.Dim(), m.Cfg.InputDim)
	}
}

func TestArtifactVocabModelMismatch(t *testing.T) {
	vocab, enc, m := fixture(t)
	vocab.Add("追加メニュー") // 模型输出宽度不变，词表变宽

	a := New("v1", vocab, enc, m)
	err := a.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !core.IsDimensionMismatch(err) {
		t.Fatalf("error = %v, want DIMENSION_MISMATCH", err)
	}
}

func TestArtifactLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !core.IsNotFound(err) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}
