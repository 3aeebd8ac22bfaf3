package model

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/shokudo/menukit/core"
)

func testConfig(numMenus int) Config {
	cfg := DefaultConfig(8, numMenus)
	cfg.DModel = 16
	cfg.FFNDim = 32
	cfg.ContextLen = 3
	return cfg
}

func TestSeq2SetForwardShape(t *testing.T) {
	cfg := testConfig(20)
	m, err := NewSeq2SetTransformer(cfg, 42)
	if err != nil {
		t.Fatalf("NewSeq2SetTransformer: %v", err)
	}

	seq := make([][]float64, cfg.ContextLen)
	for i := range seq {
		seq[i] = make([]float64, cfg.InputDim) // 全零填充也要能前向
	}
	logits, attns, err := m.Forward(seq, false)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(logits) != cfg.NumMenus {
		t.Fatalf("logits len = %d, want %d", len(logits), cfg.NumMenus)
	}
	for i, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("logit[%d] = %v", i, v)
		}
	}
	if len(attns) != cfg.Layers {
		t.Fatalf("attention layers = %d, want %d", len(attns), cfg.Layers)
	}
	if len(attns[0]) != cfg.Heads {
		t.Fatalf("attention heads = %d, want %d", len(attns[0]), cfg.Heads)
	}
}

func TestSeq2SetForwardDeterministic(t *testing.T) {
	cfg := testConfig(10)
	m, _ := NewSeq2SetTransformer(cfg, 7)

	seq := [][]float64{make([]float64, cfg.InputDim), make([]float64, cfg.InputDim)}
	seq[0][0] = 1.5
	seq[1][3] = -0.7

	a, _, err := m.Forward(seq, false)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	b, _, _ := m.Forward(seq, false)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("inference not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSeq2SetDimensionMismatch(t *testing.T) {
	cfg := testConfig(10)
	m, _ := NewSeq2SetTransformer(cfg, 1)
	_, _, err := m.Forward([][]float64{make([]float64, cfg.InputDim+1)}, false)
	if err == nil {
		t.Fatal("Forward accepted wrong input dim")
	}
	if !core.IsDimensionMismatch(err) {
		t.Fatalf("error = %v, want DIMENSION_MISMATCH", err)
	}
}

func TestSeq2SetAttentionRowsSumToOne(t *testing.T) {
	cfg := testConfig(10)
	m, _ := NewSeq2SetTransformer(cfg, 3)
	seq := [][]float64{make([]float64, cfg.InputDim), make([]float64, cfg.InputDim), make([]float64, cfg.InputDim)}
	seq[1][2] = 2.0
	_, attns, err := m.Forward(seq, false)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for l, layer := range attns {
		for h, head := range layer {
			for q, row := range head {
				sum := 0.0
				for _, w := range row {
					sum += w
				}
				if math.Abs(sum-1.0) > 1e-9 {
					t.Fatalf("attn[%d][%d][%d] sums to %v", l, h, q, sum)
				}
			}
		}
	}
}

// 单条样本反复训练应能把损失压下去，整条反向链路由此得到端到端验证。
func TestSeq2SetOverfitsOneExample(t *testing.T) {
	cfg := testConfig(6)
	cfg.Dropout = 0 // 收敛检验不需要正则
	m, _ := NewSeq2SetTransformer(cfg, 11)

	seq := make([][]float64, cfg.ContextLen)
	for i := range seq {
		seq[i] = make([]float64, cfg.InputDim)
		seq[i][i%cfg.InputDim] = 1.0
	}
	target := []float64{1, 0, 1, 0, 0, 1}

	loss := JaccardLoss{}
	opt := NewAdam(1e-2)

	first := 0.0
	last := 0.0
	for step := 0; step < 200; step++ {
		logits, _, err := m.Forward(seq, true)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		l := loss.Forward(logits, target)
		if step == 0 {
			first = l
		}
		last = l
		m.Backward(loss.Grad(logits, target, 1.0))
		opt.Step(m.Params())
		m.ZeroGrads()
	}
	if !(last < first) {
		t.Fatalf("loss did not decrease: first=%v last=%v", first, last)
	}
	// 并集计入全部 6 个位置，3 个目标的损失下界是 0.5
	if last > 0.65 {
		t.Fatalf("loss stayed far from floor: first=%v last=%v", first, last)
	}
}

func TestJaccardLossBounds(t *testing.T) {
	loss := JaccardLoss{}

	// 预测与目标完全一致且置信度极高时损失趋近 0
	logits := []float64{20, -20, 20, -20}
	target := []float64{1, 0, 1, 0}
	if l := loss.Forward(logits, target); l > 0.6 {
		// σ>0 使并集计入全部位置，完全匹配时损失为 1 - |T|/N
		t.Fatalf("matched loss = %v, want <= 0.6", l)
	}

	// 完全不相交时交集为 0，损失为 1
	disjoint := loss.Forward([]float64{20, 20}, []float64{0, 0})
	if math.Abs(disjoint-1.0) > 1e-6 {
		t.Fatalf("disjoint loss = %v, want 1.0", disjoint)
	}
}

func TestJaccardGradZeroOutsideTargets(t *testing.T) {
	loss := JaccardLoss{}
	grad := loss.Grad([]float64{0.3, -0.1, 2.0}, []float64{0, 1, 0}, 1.0)
	if grad[0] != 0 || grad[2] != 0 {
		t.Fatalf("grad leaks outside target support: %v", grad)
	}
	if grad[1] >= 0 {
		t.Fatalf("grad on target position should push logit up, got %v", grad[1])
	}
}

func TestPlateauSchedulerHalvesLR(t *testing.T) {
	opt := NewAdam(1e-3)
	sched := NewPlateauScheduler()
	sched.Patience = 2

	sched.Observe(1.0, opt)
	if sched.Observe(1.0, opt) {
		t.Fatal("decayed before patience exhausted")
	}
	if !sched.Observe(1.0, opt) {
		t.Fatal("expected decay after patience epochs without improvement")
	}
	if math.Abs(opt.LR-5e-4) > 1e-12 {
		t.Fatalf("LR = %v, want 5e-4", opt.LR)
	}
}

func TestClipGlobalNorm(t *testing.T) {
	params := []Param{{Value: []float64{0, 0}, Grad: []float64{3, 4}}}
	clipGlobalNorm(params, 1.0)
	norm := math.Hypot(params[0].Grad[0], params[0].Grad[1])
	if math.Abs(norm-1.0) > 1e-9 {
		t.Fatalf("clipped norm = %v, want 1.0", norm)
	}
}

// 推理模式的前向不得写任何模型状态：同一模型被多个 goroutine
// 并发前向时结果必须与串行一致（-race 下同时验证无数据竞争）。
func TestSeq2SetForwardConcurrentInference(t *testing.T) {
	run := func(t *testing.T, m *Seq2SetTransformer, cfg Config) {
		t.Helper()

		seqs := make([][][]float64, 4)
		for s := range seqs {
			seq := make([][]float64, cfg.ContextLen)
			for i := range seq {
				seq[i] = make([]float64, cfg.InputDim)
				seq[i][(s+i)%cfg.InputDim] = float64(s+1) * 0.3
			}
			seqs[s] = seq
		}

		want := make([][]float64, len(seqs))
		for s, seq := range seqs {
			logits, _, err := m.Forward(seq, false)
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}
			want[s] = logits
		}

		var wg sync.WaitGroup
		errs := make(chan error, 4*len(seqs))
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for s, seq := range seqs {
					logits, _, err := m.Forward(seq, false)
					if err != nil {
						errs <- err
						return
					}
					for i := range logits {
						if logits[i] != want[s][i] {
							errs <- fmt.Errorf("seq %d logit[%d] = %v, want %v", s, i, logits[i], want[s][i])
							return
						}
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}
	}

	cfg := testConfig(12)

	t.Run("fresh model", func(t *testing.T) {
		m, err := NewSeq2SetTransformer(cfg, 11)
		if err != nil {
			t.Fatalf("NewSeq2SetTransformer: %v", err)
		}
		run(t, m, cfg)
	})

	// 反序列化得到的模型 dropout 为 nil，推理路径同样要安全
	t.Run("round-tripped model", func(t *testing.T) {
		m, err := NewSeq2SetTransformer(cfg, 11)
		if err != nil {
			t.Fatalf("NewSeq2SetTransformer: %v", err)
		}
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var loaded Seq2SetTransformer
		if err := json.Unmarshal(data, &loaded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		loaded.ZeroGrads()
		run(t, &loaded, cfg)
	})
}
