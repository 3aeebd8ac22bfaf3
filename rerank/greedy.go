package rerank

import (
	"context"
	"sort"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/nutrition"
	"github.com/shokudo/menukit/pipeline"
	"github.com/shokudo/menukit/pkg/utils"
)

// GreedySetNode 用贪心搜索构造整套菜单：
// 先取个体分最高的菜做种子，然后每轮加入使混合分最大的候选，
// 混合分 = IndividualWeight·池内个体均分 + BalanceWeight·整套均衡分。
//
// 约定：
//   - 候选池 = 个体分前 PoolSize 名，池外不参与
//   - 混合分并列时取池内靠前者，结果确定
//   - 有用户画像时，均衡分的能量理想值取历史能量中位数
type GreedySetNode struct {
	// K 目标套餐大小，<=0 时取 rctx.TopK
	K int
	// PoolSize 候选池大小，<=0 时取默认 15
	PoolSize int
	// IndividualWeight / BalanceWeight 是混合分两路权重
	IndividualWeight float64
	BalanceWeight    float64

	Matcher *nutrition.NutritionMatcher
	Profile *nutrition.PreferenceProfile
}

// NewGreedySetNode 以默认常数创建：池 15，混合 0.35/0.65。
func NewGreedySetNode(k int) *GreedySetNode {
	return &GreedySetNode{
		K:                k,
		PoolSize:         15,
		IndividualWeight: 0.35,
		BalanceWeight:    0.65,
		Matcher:          nutrition.NewMatcher(),
	}
}

func (n *GreedySetNode) Name() string {
	return "rerank.greedy_set"
}

func (n *GreedySetNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *GreedySetNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	k := n.K
	if k <= 0 && rctx != nil {
		k = rctx.TopK
	}
	if k <= 0 {
		k = 4
	}

	poolSize := n.PoolSize
	if poolSize <= 0 {
		poolSize = 15
	}

	matcher := n.Matcher
	if matcher == nil {
		matcher = nutrition.NewMatcher()
	}
	if n.Profile != nil && n.Profile.Energy.Median > 0 {
		m := *matcher
		m.IdealSetEnergy = n.Profile.Energy.Median
		matcher = &m
	}

	// 候选池：个体分前 poolSize 名，稳定排序保证并列时顺序确定
	pool := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			pool = append(pool, item)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})
	if len(pool) > poolSize {
		pool = pool[:poolSize]
	}
	if k > len(pool) {
		k = len(pool)
	}

	chosen := make([]*core.Item, 0, k)
	used := make([]bool, len(pool))

	// 种子：池首（个体分最高）
	chosen = append(chosen, pool[0])
	used[0] = true

	for len(chosen) < k {
		bestIdx := -1
		bestBlend := 0.0
		for i, cand := range pool {
			if used[i] {
				continue
			}
			blend := n.blendScore(chosen, cand, matcher)
			if bestIdx == -1 || blend > bestBlend {
				bestIdx = i
				bestBlend = blend
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		chosen = append(chosen, pool[bestIdx])
	}

	for rank, item := range chosen {
		item.Rank = rank + 1
		item.CompositeScore = item.Score
		item.PutLabel("rerank", utils.Label{Value: "greedy_set", Source: n.Name()})
	}
	return chosen, nil
}

// blendScore 评估在已选集合上追加 cand 后的整套质量。
func (n *GreedySetNode) blendScore(chosen []*core.Item, cand *core.Item, matcher *nutrition.NutritionMatcher) float64 {
	menus := make([]*core.MenuItem, 0, len(chosen)+1)
	individual := 0.0
	for _, item := range chosen {
		menus = append(menus, item.Menu)
		individual += item.Score
	}
	menus = append(menus, cand.Menu)
	individual = (individual + cand.Score) / float64(len(chosen)+1)

	balance := matcher.SetBalanceScore(menus)
	return n.IndividualWeight*individual + n.BalanceWeight*balance
}
