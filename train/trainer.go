package train

import (
	"github.com/rs/zerolog"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
	"github.com/shokudo/menukit/model"
)

// Options 是训练超参。
type Options struct {
	Epochs            int
	BatchSize         int
	LearningRate      float64
	EarlyStopPatience int
	Seed              int64
}

// DefaultOptions 返回与离线实验一致的默认超参。
func DefaultOptions() Options {
	return Options{
		Epochs:            50,
		BatchSize:         4,
		LearningRate:      1e-3,
		EarlyStopPatience: 10,
		Seed:              1,
	}
}

// EpochMetrics 是一个 epoch 的训练与验证指标。
type EpochMetrics struct {
	Epoch        int
	TrainLoss    float64
	TrainJaccard float64
	ValLoss      float64
	ValJaccard   float64
}

// Result 是一次完整训练的结果。
type Result struct {
	History     []EpochMetrics
	BestValLoss float64
	EpochsRun   int
	Stopped     bool // 是否早停
}

// Trainer 驱动 Seq2SetTransformer 在时间分割数据集上的训练。
//
// 数据流：上下文菜单索引 → 预编码向量表 → 逐样本前向/反向 →
// 按 mini-batch 做一次 Adam 更新。验证损失停滞时降学习率，
// 持续无改善则早停并回滚到最优权重。
type Trainer struct {
	Model   *model.Seq2SetTransformer
	Encoder *encoder.MenuEncoder
	Vocab   *core.Vocabulary
	Opts    Options
	Log     zerolog.Logger

	// Lookup 按名称取菜单记录，nil 或未命中时退化为仅凭名称编码
	Lookup func(name string) *core.MenuItem

	embeddings [][]float64
}

// buildEmbeddingTable 为词表每个菜单预编码一次，训练期间复用。
func (t *Trainer) buildEmbeddingTable() {
	t.embeddings = make([][]float64, t.Vocab.Size())
	for idx := range t.embeddings {
		name := t.Vocab.Name(idx)
		var item *core.MenuItem
		if t.Lookup != nil {
			item = t.Lookup(name)
		}
		if item != nil {
			t.embeddings[idx] = t.Encoder.Encode(item)
		} else {
			t.embeddings[idx] = t.Encoder.EncodeByName(name)
		}
	}
}

// contextVectors 把索引上下文展开为向量序列并右侧零填充到 padTo。
func (t *Trainer) contextVectors(context []int, padTo int) [][]float64 {
	dim := t.Encoder.Dim()
	seq := make([][]float64, 0, padTo)
	for _, idx := range context {
		if idx >= 0 && idx < len(t.embeddings) {
			seq = append(seq, t.embeddings[idx])
		}
	}
	for len(seq) < padTo {
		seq = append(seq, make([]float64, dim))
	}
	return seq
}

// Fit 执行完整训练循环并把最优权重留在模型上。
func (t *Trainer) Fit(ds *Dataset) (*Result, error) {
	if len(ds.Train) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeDataInsufficient,
			"train: empty training set")
	}
	t.buildEmbeddingTable()

	opt := model.NewAdam(t.Opts.LearningRate)
	sched := model.NewPlateauScheduler()
	loss := model.JaccardLoss{}
	vocabSize := t.Vocab.Size()

	result := &Result{BestValLoss: 1e18}
	var best [][]float64
	patience := 0

	for epoch := 1; epoch <= t.Opts.Epochs; epoch++ {
		trainLoss, trainJac, err := t.runEpoch(ds.Train, loss, opt, vocabSize, true)
		if err != nil {
			return nil, err
		}
		valLoss, valJac, err := t.runEpoch(ds.Validation, loss, nil, vocabSize, false)
		if err != nil {
			return nil, err
		}
		if len(ds.Validation) == 0 {
			// 无验证集时退化为按训练损失调度
			valLoss, valJac = trainLoss, trainJac
		}

		metrics := EpochMetrics{
			Epoch: epoch, TrainLoss: trainLoss, TrainJaccard: trainJac,
			ValLoss: valLoss, ValJaccard: valJac,
		}
		result.History = append(result.History, metrics)
		result.EpochsRun = epoch
		t.Log.Debug().
			Int("epoch", epoch).
			Float64("train_loss", trainLoss).
			Float64("val_loss", valLoss).
			Float64("val_jaccard", valJac).
			Msg("epoch finished")

		sched.Observe(valLoss, opt)
		if valLoss < result.BestValLoss {
			result.BestValLoss = valLoss
			best = snapshot(t.Model.Params())
			patience = 0
		} else {
			patience++
			if patience >= t.Opts.EarlyStopPatience {
				result.Stopped = true
				t.Log.Info().Int("epoch", epoch).Msg("early stopping")
				break
			}
		}
	}

	if best != nil {
		restore(t.Model.Params(), best)
	}
	return result, nil
}

// runEpoch 跑一遍样本集。train 为真时按 mini-batch 更新权重。
func (t *Trainer) runEpoch(examples []Example, loss model.JaccardLoss, opt *model.Adam, vocabSize int, train bool) (float64, float64, error) {
	if len(examples) == 0 {
		return 0, 0, nil
	}
	batchSize := t.Opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	totalLoss := 0.0
	totalJaccard := 0.0
	batches := 0

	for start := 0; start < len(examples); start += batchSize {
		end := start + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		batch := examples[start:end]

		// 批内右侧零填充到最长上下文
		padTo := 0
		for _, ex := range batch {
			if len(ex.Context) > padTo {
				padTo = len(ex.Context)
			}
		}

		batchLoss := 0.0
		scale := 1.0 / float64(len(batch))
		for _, ex := range batch {
			seq := t.contextVectors(ex.Context, padTo)
			target := TargetVector(ex.Target, vocabSize)

			logits, _, err := t.Model.Forward(seq, train)
			if err != nil {
				// 维度不一致说明编码器与模型配置脱节，训练中断
				return 0, 0, err
			}
			batchLoss += loss.Forward(logits, target) * scale
			totalJaccard += hardJaccard(logits, target)
			if train {
				t.Model.Backward(loss.Grad(logits, target, scale))
			}
		}
		totalLoss += batchLoss
		batches++

		if train {
			opt.Step(t.Model.Params())
			t.Model.ZeroGrads()
		}
	}

	return totalLoss / float64(batches), totalJaccard / float64(len(examples)), nil
}

// hardJaccard 用 0.5 概率阈值二值化后计算集合 Jaccard，仅作监控指标。
func hardJaccard(logits, target []float64) float64 {
	intersection := 0.0
	union := 0.0
	for i, x := range logits {
		pred := 0.0
		if model.Sigmoid(x) > 0.5 {
			pred = 1.0
		}
		intersection += pred * target[i]
		if pred+target[i] > 0 {
			union++
		}
	}
	return intersection / (union + 1e-8)
}

func snapshot(params []model.Param) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		cp := make([]float64, len(p.Value))
		copy(cp, p.Value)
		out[i] = cp
	}
	return out
}

func restore(params []model.Param, saved [][]float64) {
	for i, p := range params {
		copy(p.Value, saved[i])
	}
}
