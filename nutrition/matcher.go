package nutrition

import (
	"math"

	"github.com/shokudo/menukit/core"
)

// 整套均衡度的理想值
const (
	idealAvgProtein   = 21.5 // 18~25g 区间的中心
	idealAvgEnergy    = 400  // 350~450kcal 区间的中心
	idealProteinShare = 0.30 // PFC 热量占比中蛋白质的理想份额

	proteinCaloriesPerG = 4
	fatCaloriesPerG     = 9
	carbsCaloriesPerG   = 4
)

// NutritionMatcher 衡量单品营养与目标值的接近程度，以及整套的均衡度。
type NutritionMatcher struct {
	Target core.NutritionTarget

	// IdealSetEnergy 整套人均能量的理想值，0 时用默认 400kcal。
	// 有用户历史画像时可设为其能量中位数。
	IdealSetEnergy float64
}

// NewMatcher 以默认目标（蛋白质 20g，能量 400kcal，脂质 10g，碳水 50g）创建。
func NewMatcher() *NutritionMatcher {
	return &NutritionMatcher{Target: core.DefaultNutritionTarget()}
}

// MatchScore 返回单品匹配分，完全一致为 1.0，偏差过大趋向 0。
// 权重：蛋白质 0.3、能量 0.3、脂质 0.2、碳水 0.2。
func (m *NutritionMatcher) MatchScore(item *core.MenuItem) float64 {
	if item == nil {
		return 0.0
	}
	protein := closeness(nutritionOrZero(item, core.NutritionProtein), m.Target.Protein)
	energy := closeness(nutritionOrZero(item, core.NutritionEnergy), m.Target.Energy)
	fat := closeness(nutritionOrZero(item, core.NutritionFat), m.Target.Fat)
	carbs := closeness(nutritionOrZero(item, core.NutritionCarbs), m.Target.Carbs)
	return 0.3*protein + 0.3*energy + 0.2*fat + 0.2*carbs
}

// SetBalanceScore 返回整套菜单的均衡度：
// 0.5·人均蛋白质接近度 + 0.3·人均能量接近度 + 0.2·PFC 蛋白质占比接近度。
func (m *NutritionMatcher) SetBalanceScore(items []*core.MenuItem) float64 {
	if len(items) == 0 {
		return 0.0
	}
	var totalProtein, totalEnergy, totalFat, totalCarbs float64
	for _, item := range items {
		totalProtein += nutritionOrZero(item, core.NutritionProtein)
		totalEnergy += nutritionOrZero(item, core.NutritionEnergy)
		totalFat += nutritionOrZero(item, core.NutritionFat)
		totalCarbs += nutritionOrZero(item, core.NutritionCarbs)
	}
	n := float64(len(items))
	avgProtein := totalProtein / n
	avgEnergy := totalEnergy / n
	avgFat := totalFat / n
	avgCarbs := totalCarbs / n

	idealEnergy := m.IdealSetEnergy
	if idealEnergy <= 0 {
		idealEnergy = idealAvgEnergy
	}
	proteinScore := clamp01(1.0 - math.Abs(avgProtein-idealAvgProtein)/idealAvgProtein)
	energyScore := clamp01(1.0 - math.Abs(avgEnergy-idealEnergy)/idealEnergy)

	balanceScore := 0.0
	pfcKcal := avgProtein*proteinCaloriesPerG + avgFat*fatCaloriesPerG + avgCarbs*carbsCaloriesPerG
	if pfcKcal > 0 {
		share := avgProtein * proteinCaloriesPerG / pfcKcal
		balanceScore = clamp01(1.0 - math.Abs(share-idealProteinShare)/idealProteinShare)
	}

	return 0.5*proteinScore + 0.3*energyScore + 0.2*balanceScore
}

// SetSummary 是整套菜单的营养汇总，用于推荐结果的附带说明。
type SetSummary struct {
	AvgProtein float64 `json:"avg_protein"`
	AvgEnergy  float64 `json:"avg_energy"`
	AvgFat     float64 `json:"avg_fat"`
	AvgCarbs   float64 `json:"avg_carbs"`
	// PFC 热量占比
	ProteinRatio float64 `json:"protein_ratio"`
	FatRatio     float64 `json:"fat_ratio"`
	CarbsRatio   float64 `json:"carbs_ratio"`
}

// Summarize 计算整套的人均营养与 PFC 占比。空集合返回零值。
func Summarize(items []*core.MenuItem) SetSummary {
	var s SetSummary
	if len(items) == 0 {
		return s
	}
	for _, item := range items {
		s.AvgProtein += nutritionOrZero(item, core.NutritionProtein)
		s.AvgEnergy += nutritionOrZero(item, core.NutritionEnergy)
		s.AvgFat += nutritionOrZero(item, core.NutritionFat)
		s.AvgCarbs += nutritionOrZero(item, core.NutritionCarbs)
	}
	n := float64(len(items))
	s.AvgProtein /= n
	s.AvgEnergy /= n
	s.AvgFat /= n
	s.AvgCarbs /= n

	total := s.AvgProtein*proteinCaloriesPerG + s.AvgFat*fatCaloriesPerG + s.AvgCarbs*carbsCaloriesPerG
	if total > 0 {
		s.ProteinRatio = s.AvgProtein * proteinCaloriesPerG / total
		s.FatRatio = s.AvgFat * fatCaloriesPerG / total
		s.CarbsRatio = s.AvgCarbs * carbsCaloriesPerG / total
	}
	return s
}

// closeness = max(0, 1 - |actual-target|/target)
func closeness(actual, target float64) float64 {
	return math.Max(0, 1.0-math.Abs(actual-target)/(target+1e-6))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func nutritionOrZero(item *core.MenuItem, key string) float64 {
	if item == nil {
		return 0
	}
	v, _ := item.NutritionValue(key)
	return v
}
