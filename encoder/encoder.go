// Package encoder 将菜单记录编码为固定维度特征向量：
// 营养子向量 + 文本子向量（TF-IDF）+ 类别子向量（关键词包含）。
// 编码器一旦 Fit，输出维度即固定，且必须与模型输入维度严格一致。
package encoder

import (
	"sync/atomic"

	"github.com/shokudo/menukit/core"
)

// DefaultTextDim 是文本子向量的默认维度（TF-IDF 词表上限）。
const DefaultTextDim = 50

// DefaultNutritionKeys 是参与编码的营养键及其顺序（5 维）。
var DefaultNutritionKeys = []string{
	core.NutritionEnergy,
	core.NutritionProtein,
	core.NutritionFat,
	core.NutritionCarbs,
	core.NutritionVitaminC,
}

// ParseStats 统计营养值解析失败次数。
// 解析失败按设计回退为 0.0 而不是报错，但静默置零会扭曲分数分布，
// 所以必须可观测；批处理结束后由调用方读取并输出。
type ParseStats struct {
	Unparseable atomic.Int64
}

// MenuEncoder 是 MenuItem → 固定维度向量的确定性映射。
//
// 约定：
//   - Fit 必须先于 Encode；Fit 之前 Encode 的文本子向量为全零（降级，不报错）
//   - 同一个编码器实例的 Dim() 恒定，等于 营养维 + 文本维 + 类别维
//   - Fit 后实例只读，可被多个推理调用并发复用
type MenuEncoder struct {
	NutritionKeys []string
	Categories    []Category

	TFIDF  *TFIDFVectorizer
	Scaler *StandardScaler

	// ScaleNutrition 控制营养子向量是否做 Z-score 标准化。
	// 默认关闭：原始量纲对营养阈值类解释更直观。
	ScaleNutrition bool

	Stats ParseStats
}

// Option 是 MenuEncoder 的配置选项。
type Option func(*MenuEncoder)

// WithTextDim 设置文本子向量维度。
func WithTextDim(dim int) Option {
	return func(e *MenuEncoder) { e.TFIDF = NewTFIDFVectorizer(dim) }
}

// WithScaledNutrition 启用营养子向量标准化。
func WithScaledNutrition() Option {
	return func(e *MenuEncoder) { e.ScaleNutrition = true }
}

// WithCategories 覆盖类别关键词表。
func WithCategories(categories []Category) Option {
	return func(e *MenuEncoder) { e.Categories = categories }
}

// New 创建默认配置的编码器：5 营养 + 50 文本 + 13 类别 = 68 维。
func New(opts ...Option) *MenuEncoder {
	e := &MenuEncoder{
		NutritionKeys: DefaultNutritionKeys,
		Categories:    DefaultCategories(),
		TFIDF:         NewTFIDFVectorizer(DefaultTextDim),
		Scaler:        &StandardScaler{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dim 返回编码输出的固定维度。
func (e *MenuEncoder) Dim() int {
	return len(e.NutritionKeys) + e.TFIDF.MaxFeatures + len(e.Categories)
}

// Fit 在训练语料上学习文本词表与营养标准化统计量。
// 空语料返回 CONFIGURATION 错误：词表无从建立，后续编码全部退化。
func (e *MenuEncoder) Fit(corpus []*core.MenuItem) error {
	if len(corpus) == 0 {
		return core.NewDomainError(core.ModuleEncoder, core.ErrorCodeConfiguration,
			"encoder: fit on empty corpus")
	}

	names := make([]string, 0, len(corpus))
	nutritionRows := make([][]float64, 0, len(corpus))
	for _, item := range corpus {
		if item == nil {
			continue
		}
		names = append(names, item.Name)
		nutritionRows = append(nutritionRows, e.nutritionFeatures(item))
	}
	if len(names) == 0 {
		return core.NewDomainError(core.ModuleEncoder, core.ErrorCodeConfiguration,
			"encoder: fit on empty corpus")
	}

	e.TFIDF.Fit(names)
	e.Scaler.Fit(nutritionRows)
	return nil
}

// Encode 编码单条菜单记录。缺失/不可解析的营养值填 0.0，未登录词忽略。
func (e *MenuEncoder) Encode(item *core.MenuItem) []float64 {
	name := ""
	if item != nil {
		name = item.Name
	}

	nutrition := e.nutritionFeatures(item)
	if e.ScaleNutrition {
		nutrition = e.Scaler.Transform(nutrition)
	}
	text := e.TFIDF.Transform(name)
	category := categoryFeatures(name, e.Categories)

	out := make([]float64, 0, e.Dim())
	out = append(out, nutrition...)
	out = append(out, text...)
	out = append(out, category...)
	return out
}

// EncodeByName 只凭名称编码（营养子向量全零）。
// 用于履历里出现但目录里已消失的菜单。
func (e *MenuEncoder) EncodeByName(name string) []float64 {
	return e.Encode(&core.MenuItem{Name: name})
}

func (e *MenuEncoder) nutritionFeatures(item *core.MenuItem) []float64 {
	features := make([]float64, len(e.NutritionKeys))
	if item == nil {
		return features
	}
	for i, key := range e.NutritionKeys {
		v, ok := item.NutritionValue(key)
		if !ok {
			if _, present := item.Nutrition[key]; present {
				// 键存在但解析失败才计数；键缺失是正常的稀疏
				e.Stats.Unparseable.Add(1)
			}
			continue
		}
		features[i] = v
	}
	return features
}

// State 是编码器的可持久化状态，与词表、模型权重作为一个工件保存。
type State struct {
	NutritionKeys  []string         `json:"nutrition_keys"`
	CategoryNames  []string         `json:"category_names"`
	TFIDF          *TFIDFVectorizer `json:"tfidf"`
	Scaler         *StandardScaler  `json:"scaler"`
	ScaleNutrition bool             `json:"scale_nutrition"`
}

// State 导出当前状态。
func (e *MenuEncoder) State() *State {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = c.Name
	}
	return &State{
		NutritionKeys:  e.NutritionKeys,
		CategoryNames:  names,
		TFIDF:          e.TFIDF,
		Scaler:         e.Scaler,
		ScaleNutrition: e.ScaleNutrition,
	}
}

// Restore 从持久化状态重建编码器。
// 类别表由代码内固定配置提供，状态里只校验类别数是否一致。
func Restore(s *State) (*MenuEncoder, error) {
	e := New()
	if s == nil {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeConfiguration,
			"encoder: nil state")
	}
	if len(s.CategoryNames) != len(e.Categories) {
		return nil, core.NewDomainError(core.ModuleEncoder, core.ErrorCodeDimensionMismatch,
			"encoder: category table width changed since the state was saved")
	}
	e.NutritionKeys = s.NutritionKeys
	e.TFIDF = s.TFIDF
	e.Scaler = s.Scaler
	e.ScaleNutrition = s.ScaleNutrition
	return e, nil
}
