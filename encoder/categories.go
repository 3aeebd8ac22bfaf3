package encoder

import "strings"

// Category 是关键词定义的菜单类别。类别表是固定配置：
// 顺序决定类别子向量的维度排布，训练与推理必须一致。
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCategories 是数据源菜名的类别关键词表（13 维）。
// 关键词为日文，直接对菜单名做包含匹配。
func DefaultCategories() []Category {
	return []Category{
		{"meat", []string{"肉", "鶏", "豚", "牛", "唐揚", "ステーキ"}},
		{"fish", []string{"魚", "さば", "まぐろ", "ぶり", "サーモン", "エビ"}},
		{"vegetable", []string{"野菜", "サラダ", "ブロッコリー", "大根", "キャベツ", "ほうれん草"}},
		{"soup", []string{"汁", "スープ", "みそ汁"}},
		{"rice", []string{"ご飯", "ライス", "チャーハン", "ピラフ"}},
		{"noodle", []string{"麺", "うどん", "そば", "ラーメン", "パスタ"}},
		{"tofu", []string{"豆腐", "厚揚げ"}},
		{"egg", []string{"卵", "玉子"}},
		{"fruit", []string{"果実", "フルーツ", "みかん", "イチゴ"}},
		{"dessert", []string{"デザート", "アイス", "ケーキ", "プディング"}},
		{"mini", []string{"ミニ", "小"}},
		{"hot", []string{"温", "あつあつ"}},
		{"cold", []string{"冷", "ひやひや"}},
	}
}

// categoryFeatures 对菜单名做确定性的关键词包含检查，每个类别产出 1.0/0.0。
func categoryFeatures(name string, categories []Category) []float64 {
	features := make([]float64, len(categories))
	for i, cat := range categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(name, kw) {
				features[i] = 1.0
				break
			}
		}
	}
	return features
}

// MatchedCategories 返回菜单名命中的类别名列表（偏好学习按类别聚合评分时使用）。
func MatchedCategories(name string, categories []Category) []string {
	var out []string
	for _, cat := range categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(name, kw) {
				out = append(out, cat.Name)
				break
			}
		}
	}
	return out
}
