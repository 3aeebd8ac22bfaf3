package nutrition

import (
	"math"
	"sort"

	"github.com/shokudo/menukit/core"
)

// PoolStats 是某天候选池的营养分位数，用作解释标签的动态阈值。
// 样本不足时退回到经验默认值，避免阈值退化为 0。
type PoolStats struct {
	Protein75 float64
	Protein90 float64
	Energy25  float64
	Energy75  float64
	Veg75     float64
}

// ComputePoolStats 在候选池上计算分位数阈值。
func ComputePoolStats(items []*core.MenuItem) PoolStats {
	var proteins, energies, vegetables []float64
	for _, item := range items {
		if item == nil {
			continue
		}
		if v, ok := item.NutritionValue(core.NutritionProtein); ok {
			proteins = append(proteins, v)
		}
		if v, ok := item.NutritionValue(core.NutritionEnergy); ok {
			energies = append(energies, v)
		}
		if v, ok := item.NutritionValue(core.NutritionVegetable); ok {
			vegetables = append(vegetables, v)
		}
	}
	return PoolStats{
		Protein75: percentileOr(proteins, 75, 10),
		Protein90: percentileOr(proteins, 90, 15),
		Energy25:  percentileOr(energies, 25, 100),
		Energy75:  percentileOr(energies, 75, 300),
		Veg75:     percentileOr(vegetables, 75, 80),
	}
}

// percentileOr 线性插值分位数，空样本返回 fallback。
func percentileOr(values []float64, p float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Stat 是单个营养维度的描述统计。
type Stat struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PreferenceProfile 概括用户历史选择的营养倾向。
type PreferenceProfile struct {
	Selections int  `json:"total_selections"`
	Energy     Stat `json:"energy"`
	Protein    Stat `json:"protein"`
	Fat        Stat `json:"fat"`
	Carbs      Stat `json:"carbs"`
	Vegetables Stat `json:"vegetables"`
	Fiber      Stat `json:"fiber"`
}

// BuildPreferenceProfile 汇总用户选过的菜单。无历史时返回 nil。
func BuildPreferenceProfile(selected []*core.MenuItem) *PreferenceProfile {
	if len(selected) == 0 {
		return nil
	}
	keys := []string{
		core.NutritionEnergy, core.NutritionProtein, core.NutritionFat,
		core.NutritionCarbs, core.NutritionVegetable, core.NutritionFiber,
	}
	series := make([][]float64, len(keys))
	count := 0
	for _, item := range selected {
		if item == nil {
			continue
		}
		count++
		for i, key := range keys {
			series[i] = append(series[i], nutritionOrZero(item, key))
		}
	}
	if count == 0 {
		return nil
	}
	return &PreferenceProfile{
		Selections: count,
		Energy:     describe(series[0]),
		Protein:    describe(series[1]),
		Fat:        describe(series[2]),
		Carbs:      describe(series[3]),
		Vegetables: describe(series[4]),
		Fiber:      describe(series[5]),
	}
}

// PreferenceScore 按历史倾向为单品打分，分值无上界，仅用于同一池内排序。
// 蛋白质与野菜越多越好，脂质越少越好，能量贴近历史中位数最好。
func (p *PreferenceProfile) PreferenceScore(item *core.MenuItem) float64 {
	if p == nil || item == nil {
		return 0.0
	}
	score := 0.0

	protein := nutritionOrZero(item, core.NutritionProtein)
	if p.Protein.Mean > 0 && protein >= p.Protein.Mean {
		score += 1.5 * (protein / p.Protein.Mean)
	} else {
		score += 1.5 * 0.5
	}

	veg := nutritionOrZero(item, core.NutritionVegetable)
	if veg >= p.Vegetables.Mean {
		score += 2.0 * (veg / (p.Vegetables.Mean + 1))
	} else {
		score += 2.0 * 0.3
	}

	fat := nutritionOrZero(item, core.NutritionFat)
	if fat <= p.Fat.Mean {
		score += 1.2 * (1.0 - fat/(p.Fat.Mean+1))
	} else {
		score += 1.2 * 0.3
	}

	energy := nutritionOrZero(item, core.NutritionEnergy)
	diff := math.Abs(energy-p.Energy.Median) / (p.Energy.Median + 1)
	score += 0.8 * (1.0 - math.Min(diff, 1.0))

	return score
}

func describe(values []float64) Stat {
	n := float64(len(values))
	s := Stat{Min: values[0], Max: values[0]}
	for _, v := range values {
		s.Mean += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean /= n

	variance := 0.0
	for _, v := range values {
		d := v - s.Mean
		variance += d * d
	}
	s.Std = math.Sqrt(variance / n)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		s.Median = sorted[mid]
	} else {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return s
}
