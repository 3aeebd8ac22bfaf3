// Package train 负责从按日期排列的选菜履历构建训练样本并训练模型。
// 分割严格按时间顺序：早期日期做验证，之后的日期做训练，杜绝未来信息泄漏。
package train

import (
	"fmt"

	"github.com/shokudo/menukit/core"
)

// Example 是一条训练样本：过去若干天被选菜单的索引序列 → 目标日的索引集合。
type Example struct {
	Date    string
	Context []int
	Target  []int
}

// Dataset 是按时间分割好的样本集。
type Dataset struct {
	Train      []Example
	Validation []Example
}

// SplitConfig 控制滑动窗口与时间分割。
type SplitConfig struct {
	// SeqLength 是上下文窗口覆盖的天数
	SeqLength int
	// MinTrainDates 是保留给验证集的最早目标日数量
	MinTrainDates int
}

// DefaultSplitConfig 返回默认分割：7 天窗口，最早 7 个目标日做验证。
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{SeqLength: 7, MinTrainDates: 7}
}

// BuildExamples 对日期升序的选菜序列做滑动窗口分割。
//
// 对每个目标位置 i >= SeqLength：
//   - 上下文 = [i-SeqLength, i) 各日被选菜单索引的顺序拼接
//   - 目标 = 第 i 日的索引集合
//   - 上下文为空的窗口跳过
//   - i < MinTrainDates+SeqLength 划入验证集，其余划入训练集
//
// 日期总数不足以构成任何窗口时返回 DATA_INSUFFICIENT。
func BuildExamples(sequences []core.SelectionHistory, vocab *core.Vocabulary, cfg SplitConfig) (*Dataset, error) {
	if len(sequences) < cfg.SeqLength+1 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeDataInsufficient,
			fmt.Sprintf("train: %d dates, need at least %d for a %d-day window",
				len(sequences), cfg.SeqLength+1, cfg.SeqLength))
	}

	indexed := make([][]int, len(sequences))
	for i, day := range sequences {
		for _, name := range day.Names {
			if idx, ok := vocab.Index(name); ok {
				indexed[i] = append(indexed[i], idx)
			}
		}
	}

	ds := &Dataset{}
	for i := cfg.SeqLength; i < len(sequences); i++ {
		var context []int
		for j := i - cfg.SeqLength; j < i; j++ {
			context = append(context, indexed[j]...)
		}
		if len(context) == 0 {
			continue
		}
		ex := Example{Date: sequences[i].Date, Context: context, Target: indexed[i]}
		if i >= cfg.MinTrainDates+cfg.SeqLength {
			ds.Train = append(ds.Train, ex)
		} else {
			ds.Validation = append(ds.Validation, ex)
		}
	}

	if len(ds.Train) == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeDataInsufficient,
			"train: no training examples after time split")
	}
	return ds, nil
}

// TargetVector 把目标索引集合展开为词表上的 0/1 向量。
func TargetVector(target []int, vocabSize int) []float64 {
	vec := make([]float64, vocabSize)
	for _, idx := range target {
		if idx >= 0 && idx < vocabSize {
			vec[idx] = 1.0
		}
	}
	return vec
}
