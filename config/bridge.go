package config

import (
	"github.com/shokudo/menukit/model"
	"github.com/shokudo/menukit/rerank"
	"github.com/shokudo/menukit/train"
)

// BuildModelConfig 把配置落成 model.Config。
// InputDim 来自编码器，NumMenus 来自词表。
func (m ModelConfig) BuildModelConfig(inputDim, numMenus int) model.Config {
	return model.Config{
		InputDim:   inputDim,
		DModel:     m.DModel,
		Heads:      m.Heads,
		Layers:     m.Layers,
		FFNDim:     m.FFNDim,
		Dropout:    m.Dropout,
		NumMenus:   numMenus,
		ContextLen: m.ContextLen,
	}
}

// BuildOptions 把配置落成 train.Options。
func (t TrainerConfig) BuildOptions() train.Options {
	return train.Options{
		Epochs:            t.Epochs,
		BatchSize:         t.BatchSize,
		LearningRate:      t.LearningRate,
		EarlyStopPatience: t.EarlyStopPatience,
		Seed:              t.Seed,
	}
}

// BuildSplit 把配置落成 train.SplitConfig。
func (t TrainerConfig) BuildSplit() train.SplitConfig {
	return train.SplitConfig{
		SeqLength:     t.SeqLength,
		MinTrainDates: t.MinTrainDates,
	}
}

// BuildWeights 把配置落成 rerank.Weights。
func (w WeightsConfig) BuildWeights() rerank.Weights {
	return rerank.Weights{
		Model:     w.Model,
		Diversity: w.Diversity,
		Nutrition: w.Nutrition,
	}
}
