// Package recommend 把模型制品、数据源与重排链路装配成对外的推荐服务。
//
// 单日推荐构建流程：
//
//	候选（当日目录）→ rank.Seq2SetNode → rank.PreferenceNode → filter.FilterNode → 重排策略 → 解释生成
//
// 重排策略二选一：composite（逐品综合分排序）或 greedy（整套贪心搜索）。
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/shokudo/menukit/artifact"
	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
	"github.com/shokudo/menukit/filter"
	"github.com/shokudo/menukit/nutrition"
	"github.com/shokudo/menukit/pipeline"
	"github.com/shokudo/menukit/rank"
	"github.com/shokudo/menukit/rerank"
)

// 重排策略名。
const (
	StrategyComposite = "composite"
	StrategyGreedy    = "greedy"
)

// Params 是推荐服务的全局参数，请求级的 RecommendContext 可逐项覆盖。
type Params struct {
	// Strategy 重排策略，空值取 StrategyComposite
	Strategy string

	// TopK 默认返回数，rctx.TopK 优先
	TopK int

	// Weights composite 策略的三路权重
	Weights rerank.Weights

	// GreedyPoolSize / GreedyIndividualWeight / GreedyBalanceWeight
	// greedy 策略参数，零值取各自默认
	GreedyPoolSize         int
	GreedyIndividualWeight float64
	GreedyBalanceWeight    float64

	// BiasStrength 偏好偏置强度，rctx.BiasStrength 优先
	BiasStrength float64

	// ExcludeAllergens 全局过敏原排除，rctx.ExcludeAllergens 优先
	ExcludeAllergens []string

	// Rules CEL 保留条件规则
	Rules []filter.RuleFilter
}

// DefaultParams 返回默认参数：composite 策略，Top 4。
func DefaultParams() Params {
	return Params{
		Strategy: StrategyComposite,
		TopK:     4,
		Weights:  rerank.DefaultWeights(),
	}
}

// Recommender 是装配完成的推荐服务。制品加载后不可变，可并发使用。
type Recommender struct {
	Catalogs   core.CatalogSource
	Selections core.SelectionSource

	// Bias 为空时不做偏好偏置调整
	Bias core.BiasSource

	Params Params
	Log    zerolog.Logger

	art   *artifact.Artifact
	enc   *encoder.MenuEncoder
	vocab *core.Vocabulary
}

// New 从模型制品与数据源装配推荐服务。
func New(art *artifact.Artifact, catalogs core.CatalogSource, selections core.SelectionSource) (*Recommender, error) {
	if art == nil {
		return nil, core.NewDomainError(core.ModuleRecomm, core.ErrorCodeInvalidInput,
			"recommend: nil artifact")
	}
	enc, err := art.Encoder()
	if err != nil {
		return nil, err
	}
	return &Recommender{
		Catalogs:   catalogs,
		Selections: selections,
		Params:     DefaultParams(),
		Log:        zerolog.Nop(),
		art:        art,
		enc:        enc,
		vocab:      art.Vocabulary,
	}, nil
}

// Result 是一次单日推荐的输出。
type Result struct {
	Date  string       `json:"date"`
	Items []*core.Item `json:"items"`

	// Reasons 每个推荐菜单的理由标签（最多 2 条）
	Reasons map[string][]string `json:"reasons"`

	// SetReason 整套推荐的说明文
	SetReason string `json:"set_reason"`

	// Summary 整套营养汇总（合计 + PFC 比率）
	Summary nutrition.SetSummary `json:"summary"`
}

// RecommendForDate 为 rctx.Date 生成一套推荐。
// 日期不在目录里返回 MISSING_DATE，只影响该次请求。
func (r *Recommender) RecommendForDate(ctx context.Context, rctx *core.RecommendContext) (*Result, error) {
	if rctx == nil || rctx.Date == "" {
		return nil, core.NewDomainError(core.ModuleRecomm, core.ErrorCodeInvalidInput,
			"recommend: empty date")
	}

	catalog, err := r.Catalogs.GetCatalog(ctx, rctx.Date)
	if err != nil {
		return nil, err
	}

	contextIdx, contextMenus, err := r.buildContext(ctx, rctx.Date)
	if err != nil {
		return nil, err
	}

	// 请求级参数回退到服务级默认。回退写在本地副本上，调用方的 rctx 不被改动
	eff := *rctx
	if eff.TopK <= 0 {
		eff.TopK = r.Params.TopK
	}
	if eff.BiasStrength == 0 {
		eff.BiasStrength = r.Params.BiasStrength
	}
	if len(eff.ExcludeAllergens) == 0 {
		eff.ExcludeAllergens = r.Params.ExcludeAllergens
	}

	items := make([]*core.Item, 0, len(catalog.Items))
	for _, menu := range catalog.Items {
		idx := -1
		if i, ok := r.vocab.Index(menu.Name); ok {
			idx = i
		}
		items = append(items, core.NewItem(menu, idx))
	}

	pipe, err := r.buildPipeline(catalog, contextIdx, contextMenus, eff.TopK)
	if err != nil {
		return nil, err
	}

	out, err := pipe.Run(ctx, &eff, items)
	if err != nil {
		return nil, err
	}

	stats := nutrition.ComputePoolStats(catalog.Items)
	reasons := make(map[string][]string, len(out))
	menus := make([]*core.MenuItem, 0, len(out))
	for _, item := range out {
		reasons[item.Name] = rerank.ItemReasons(item.Menu, stats)
		if item.Menu != nil {
			menus = append(menus, item.Menu)
		}
	}

	return &Result{
		Date:      rctx.Date,
		Items:     out,
		Reasons:   reasons,
		SetReason: rerank.SetReason(out),
		Summary:   nutrition.Summarize(menus),
	}, nil
}

// buildContext 收集推荐日之前最近若干天的选择履历，
// 映射为词表索引（时间先后顺序），并带回这些菜单的营养记录。
func (r *Recommender) buildContext(ctx context.Context, date string) ([]int, []*core.MenuItem, error) {
	dates, err := r.Catalogs.Dates(ctx)
	if err != nil {
		return nil, nil, err
	}

	// YYYY-MM-DD 的字典序即日历序
	pos := sort.SearchStrings(dates, date)

	contextLen := r.art.Model.Cfg.ContextLen
	start := pos - contextLen
	if start < 0 {
		start = 0
	}

	var indices []int
	var menus []*core.MenuItem
	for _, d := range dates[start:pos] {
		names, err := r.Selections.GetSelectedNames(ctx, d)
		if err != nil {
			return nil, nil, fmt.Errorf("selections for %s: %w", d, err)
		}
		if len(names) == 0 {
			continue
		}
		dayCatalog, err := r.Catalogs.GetCatalog(ctx, d)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range names {
			idx, ok := r.vocab.Index(name)
			if !ok {
				continue
			}
			indices = append(indices, idx)
			menus = append(menus, dayCatalog.Find(name))
		}
	}
	return indices, menus, nil
}

func (r *Recommender) buildPipeline(catalog *core.Catalog, contextIdx []int, contextMenus []*core.MenuItem, topK int) (*pipeline.Pipeline, error) {
	// 上下文条目来自过去日期的目录，优先用当时的营养记录编码
	byName := make(map[string]*core.MenuItem, len(contextMenus))
	for _, m := range contextMenus {
		if m != nil {
			byName[m.Name] = m
		}
	}
	encode := func(idx int) []float64 {
		name := r.vocab.Name(idx)
		if menu, ok := byName[name]; ok {
			return r.enc.Encode(menu)
		}
		if menu := catalog.Find(name); menu != nil {
			return r.enc.Encode(menu)
		}
		return r.enc.EncodeByName(name)
	}

	nodes := []pipeline.Node{
		&rank.Seq2SetNode{
			Model:   r.art.Model,
			Encode:  encode,
			Context: contextIdx,
			Bias:    r.Bias,
		},
	}

	// 履历画像对模型分做偏好混合；greedy 策略同时用它做整套平衡评估
	profile := nutrition.BuildPreferenceProfile(contextMenus)
	if profile != nil {
		nodes = append(nodes, &rank.PreferenceNode{Profile: profile})
	}

	filters := []filter.Filter{filter.AllergenFilter{}}
	for i := range r.Params.Rules {
		filters = append(filters, &r.Params.Rules[i])
	}
	nodes = append(nodes, &filter.FilterNode{Filters: filters})

	strategy := r.Params.Strategy
	if strategy == "" {
		strategy = StrategyComposite
	}
	switch strategy {
	case StrategyComposite:
		composite := rerank.NewCompositeNode()
		composite.Weights = r.Params.Weights
		if err := composite.Weights.Validate(); err != nil {
			return nil, err
		}
		nodes = append(nodes, composite, &rerank.TopNNode{N: topK})
	case StrategyGreedy:
		greedy := rerank.NewGreedySetNode(0)
		if r.Params.GreedyPoolSize > 0 {
			greedy.PoolSize = r.Params.GreedyPoolSize
		}
		if r.Params.GreedyIndividualWeight > 0 || r.Params.GreedyBalanceWeight > 0 {
			greedy.IndividualWeight = r.Params.GreedyIndividualWeight
			greedy.BalanceWeight = r.Params.GreedyBalanceWeight
		}
		greedy.Profile = profile
		nodes = append(nodes, greedy)
	default:
		return nil, core.NewDomainError(core.ModuleRecomm, core.ErrorCodeConfiguration,
			fmt.Sprintf("recommend: unknown strategy %q", strategy))
	}

	nodes = append(nodes, &rerank.ExplainNode{Stats: nutrition.ComputePoolStats(catalog.Items)})
	return &pipeline.Pipeline{Nodes: nodes}, nil
}
