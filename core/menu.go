package core

import "github.com/shokudo/menukit/pkg/conv"

// 营养键常量。沿用数据源（食堂运营商）的原始日文键名，
// 解析时做一次键名透传，不做翻译映射。
const (
	NutritionEnergy    = "エネルギー(kcal)"
	NutritionProtein   = "たんぱく質(g)"
	NutritionFat       = "脂質(g)"
	NutritionCarbs     = "炭水化物(g)"
	NutritionVitaminC  = "ビタミンC(mg)"
	NutritionVegetable = "野菜重量(g)"
	NutritionFiber     = "食物繊維(g)"
	NutritionSalt      = "食塩相当量(g)"
	NutritionSatFat    = "飽和脂肪酸(g)"

	// AllergenPresent 是营养表里表示“含有该过敏原”的标记值
	AllergenPresent = "◯"
)

// CommonAllergens 是数据源标注的过敏原类别全集。
var CommonAllergens = []string{
	"卵", "乳類", "小麦", "そば", "落花生",
	"海老", "カニ", "牛肉", "くるみ",
	"大豆", "鶏肉", "豚肉",
}

// MenuItem 是一条菜单记录：名称唯一标识，营养表为原始键值
// （数值可能是本地化字符串）。每个日期快照加载一次，加载后不可变。
type MenuItem struct {
	Name      string         `json:"name"`
	Nutrition map[string]any `json:"nutrition"`
}

// NutritionValue 取营养值并强制转为 float64。
// 缺失或无法解析返回 (0, false)，不报错；
// 调用方（如 encoder）可据 ok 统计解析失败次数。
func (m *MenuItem) NutritionValue(key string) (float64, bool) {
	if m == nil || m.Nutrition == nil {
		return 0, false
	}
	v, ok := m.Nutrition[key]
	if !ok {
		return 0, false
	}
	return conv.ToFloat64(v)
}

// HasAllergen 检查该菜单是否标注了指定过敏原。
func (m *MenuItem) HasAllergen(allergen string) bool {
	if m == nil || m.Nutrition == nil {
		return false
	}
	v, ok := m.Nutrition[allergen]
	if !ok {
		return false
	}
	s, ok := conv.ToString(v)
	return ok && s == AllergenPresent
}

// Catalog 是某个日期可选的菜单集合，保持数据源中的出现顺序。
type Catalog struct {
	Date  string      `json:"date"` // YYYY-MM-DD
	Items []*MenuItem `json:"items"`
}

// Find 按名称查找菜单，找不到返回 nil。
func (c *Catalog) Find(name string) *MenuItem {
	if c == nil {
		return nil
	}
	for _, it := range c.Items {
		if it != nil && it.Name == name {
			return it
		}
	}
	return nil
}

// SelectionHistory 是某个日期用户实际选择的菜单名集合。
// 集合内部无序；日期之间按日历顺序构成序列（训练切分依赖该顺序）。
type SelectionHistory struct {
	Date  string   `json:"date"`
	Names []string `json:"names"`
}
