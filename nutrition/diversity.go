// Package nutrition 提供菜单集合的营养侧评分：
// 集合内多样性、单品与目标的匹配度、整套的均衡度，以及解释用的分布统计。
// 所有分数都约定落在 [0, 1]，便于加权合成。
package nutrition

import (
	"math"

	"github.com/shokudo/menukit/core"
)

// 多样性向量的归一化分母，来自食堂单品营养的常见上限
var diversityScales = []struct {
	key   string
	scale float64
}{
	{core.NutritionEnergy, 700},
	{core.NutritionProtein, 40},
	{core.NutritionFat, 30},
	{core.NutritionCarbs, 100},
}

// DiversityScorer 按营养向量的平均成对欧氏距离评估集合多样性。
// 营养差异越大，多样性越高。
type DiversityScorer struct{}

// Score 返回集合多样性，范围 [0, 1]。少于 2 个条目时为 0。
func (DiversityScorer) Score(items []*core.MenuItem) float64 {
	vectors := make([][]float64, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		vec := make([]float64, len(diversityScales))
		for i, s := range diversityScales {
			if v, ok := item.NutritionValue(s.key); ok {
				vec[i] = v / s.scale
			}
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) < 2 {
		return 0.0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			total += euclidean(vectors[i], vectors[j])
			pairs++
		}
	}
	avg := total / float64(pairs)
	return math.Min(avg, 1.0)
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
