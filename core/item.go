package core

import "github.com/shokudo/menukit/pkg/utils"

// Item 是推荐链路中的统一承载结构：候选菜单 + 各阶段打出的分数 + 解释标签。
// 分数字段里只有 ModelScore 是持久化口径，复合分每次请求重算、不落盘。
type Item struct {
	Name  string // 菜单名（目录快照内唯一）
	Index int    // 词表索引；不在词表内时为 -1

	Score          float64 // 当前排序依据（链路各节点可覆写）
	ModelScore     float64 // Seq2Set 模型的 sigmoid 概率
	DiversityScore float64
	NutritionScore float64
	CompositeScore float64
	Rank           int

	Menu   *MenuItem // 菜单记录引用（含营养表），只读
	Labels map[string]utils.Label
}

// NewItem 从菜单记录创建候选。
func NewItem(menu *MenuItem, index int) *Item {
	name := ""
	if menu != nil {
		name = menu.Name
	}
	return &Item{
		Name:   name,
		Index:  index,
		Menu:   menu,
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Reasons 返回 "reason" 标签累积的推荐理由列表。
func (it *Item) Reasons() []string {
	if it.Labels == nil {
		return nil
	}
	lbl, ok := it.Labels["reason"]
	if !ok || lbl.Value == "" {
		return nil
	}
	return splitLabelValues(lbl.Value)
}

func splitLabelValues(v string) []string {
	var out []string
	start := 0
	for i := 0; i < len(v); i++ {
		if v[i] == '|' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	if start < len(v) {
		out = append(out, v[start:])
	}
	return out
}
