// Package config 提供整个推荐系统的 YAML 配置加载与校验。
//
// 配置覆盖模型结构、训练超参、重排策略与营养目标，
// 未给出的字段回落到各包的默认值。
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shokudo/menukit/core"
)

// Config 是完整的系统配置。
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Trainer   TrainerConfig   `yaml:"trainer"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Nutrition NutritionConfig `yaml:"nutrition"`
	Filter    FilterConfig    `yaml:"filter"`
	Store     StoreConfig     `yaml:"store"`

	// ArtifactPath 模型制品路径（训练输出 / 推理输入）
	ArtifactPath string `yaml:"artifact_path"`
}

// ModelConfig 对应 model.Config 的可配置部分。
// InputDim 与 NumMenus 由编码器和词表决定，不从配置读取。
type ModelConfig struct {
	DModel     int     `yaml:"d_model"`
	Heads      int     `yaml:"heads"`
	Layers     int     `yaml:"layers"`
	FFNDim     int     `yaml:"ffn_dim"`
	Dropout    float64 `yaml:"dropout"`
	ContextLen int     `yaml:"context_len"`
}

// TrainerConfig 对应 train.Options 与 train.SplitConfig。
type TrainerConfig struct {
	Epochs            int     `yaml:"epochs"`
	BatchSize         int     `yaml:"batch_size"`
	LearningRate      float64 `yaml:"learning_rate"`
	EarlyStopPatience int     `yaml:"early_stop_patience"`
	Seed              int64   `yaml:"seed"`
	SeqLength         int     `yaml:"seq_length"`
	MinTrainDates     int     `yaml:"min_train_dates"`
}

// RerankConfig 选择并参数化重排策略。
type RerankConfig struct {
	// Strategy 为 "composite" 或 "greedy"
	Strategy string `yaml:"strategy"`

	// TopK 最终返回的菜单数
	TopK int `yaml:"top_k"`

	// Weights 综合分三路权重（composite 策略）
	Weights WeightsConfig `yaml:"weights"`

	// Greedy 贪心整套搜索参数（greedy 策略）
	Greedy GreedyConfig `yaml:"greedy"`

	// BiasStrength 偏好偏置强度，[0, 1]
	BiasStrength float64 `yaml:"bias_strength"`
}

// WeightsConfig 综合分权重。
type WeightsConfig struct {
	Model     float64 `yaml:"model"`
	Diversity float64 `yaml:"diversity"`
	Nutrition float64 `yaml:"nutrition"`
}

// GreedyConfig 贪心整套搜索参数。
type GreedyConfig struct {
	PoolSize         int     `yaml:"pool_size"`
	IndividualWeight float64 `yaml:"individual_weight"`
	BalanceWeight    float64 `yaml:"balance_weight"`
}

// NutritionConfig 营养目标。
type NutritionConfig struct {
	// Targets 单品营养目标，key 为营养键（"エネルギー(kcal)" 等）
	Targets map[string]float64 `yaml:"targets"`

	// IdealSetEnergy 整套平均エネルギー目标，0 使用默认 400
	IdealSetEnergy float64 `yaml:"ideal_set_energy"`
}

// FilterConfig 前置过滤配置。
type FilterConfig struct {
	// ExcludeAllergens 排除的アレルゲン列表
	ExcludeAllergens []string `yaml:"exclude_allergens"`

	// Rules CEL 保留条件规则
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig 单条 CEL 规则。
type RuleConfig struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// StoreConfig 存储后端配置。
type StoreConfig struct {
	// SQLitePath 评分库路径，为空不启用
	SQLitePath string `yaml:"sqlite_path"`

	// Redis 缓存后端，Addr 为空不启用
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig Redis 连接配置。
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// Default 返回全默认配置。
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			DModel:     128,
			Heads:      4,
			Layers:     2,
			FFNDim:     256,
			Dropout:    0.2,
			ContextLen: 7,
		},
		Trainer: TrainerConfig{
			Epochs:            50,
			BatchSize:         4,
			LearningRate:      1e-3,
			EarlyStopPatience: 10,
			Seed:              1,
			SeqLength:         7,
			MinTrainDates:     7,
		},
		Rerank: RerankConfig{
			Strategy: "composite",
			TopK:     4,
			Weights:  WeightsConfig{Model: 0.5, Diversity: 0.2, Nutrition: 0.3},
			Greedy: GreedyConfig{
				PoolSize:         15,
				IndividualWeight: 0.35,
				BalanceWeight:    0.65,
			},
			BiasStrength: 0,
		},
		Nutrition: NutritionConfig{},
	}
}

// Load 从 YAML 文件加载配置，未给出的字段保持默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的内部一致性。
func (c *Config) Validate() error {
	if c.Model.DModel <= 0 || c.Model.Heads <= 0 || c.Model.Layers <= 0 || c.Model.FFNDim <= 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: model dimensions must be positive")
	}
	if c.Model.DModel%c.Model.Heads != 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			fmt.Sprintf("config: d_model %d not divisible by heads %d", c.Model.DModel, c.Model.Heads))
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			fmt.Sprintf("config: dropout %v out of range [0, 1)", c.Model.Dropout))
	}
	if c.Model.ContextLen <= 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: context_len must be positive")
	}
	if c.Trainer.Epochs <= 0 || c.Trainer.BatchSize <= 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: epochs and batch_size must be positive")
	}
	if c.Trainer.LearningRate <= 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: learning_rate must be positive")
	}
	switch c.Rerank.Strategy {
	case "composite", "greedy":
	default:
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			fmt.Sprintf("config: unknown rerank strategy %q", c.Rerank.Strategy))
	}
	if c.Rerank.TopK <= 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: top_k must be positive")
	}
	w := c.Rerank.Weights
	if w.Model < 0 || w.Diversity < 0 || w.Nutrition < 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: rerank weights must be non-negative")
	}
	if c.Rerank.BiasStrength < 0 || c.Rerank.BiasStrength > 1 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			fmt.Sprintf("config: bias_strength %v out of range [0, 1]", c.Rerank.BiasStrength))
	}
	g := c.Rerank.Greedy
	if g.IndividualWeight < 0 || g.BalanceWeight < 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
			"config: greedy weights must be non-negative")
	}
	for _, t := range c.Nutrition.Targets {
		if t < 0 {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
				"config: nutrition targets must be non-negative")
		}
	}
	for _, r := range c.Filter.Rules {
		if r.Expr == "" {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
				fmt.Sprintf("config: filter rule %q has empty expression", r.Name))
		}
	}
	return nil
}
