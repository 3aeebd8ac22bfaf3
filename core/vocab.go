package core

// Vocabulary 是菜单名到整数索引的固定双射。
// 索引按跨日期首次出现顺序分配；它同时决定模型输出宽度和嵌入表行号，
// 因此训练与推理必须使用同一份词表（随模型工件一起持久化，带版本标记）。
type Vocabulary struct {
	Version string         `json:"version"`
	ToIndex map[string]int `json:"to_index"`
	ToName  []string       `json:"to_name"`
}

// NewVocabulary 创建空词表。
func NewVocabulary(version string) *Vocabulary {
	return &Vocabulary{
		Version: version,
		ToIndex: make(map[string]int),
	}
}

// BuildVocabulary 按日期顺序扫描目录快照，按首次出现顺序分配索引。
func BuildVocabulary(version string, catalogs []*Catalog) *Vocabulary {
	v := NewVocabulary(version)
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		for _, item := range c.Items {
			if item == nil || item.Name == "" {
				continue
			}
			v.Add(item.Name)
		}
	}
	return v
}

// Add 登记名称，已存在时返回现有索引。
func (v *Vocabulary) Add(name string) int {
	if idx, ok := v.ToIndex[name]; ok {
		return idx
	}
	idx := len(v.ToName)
	v.ToIndex[name] = idx
	v.ToName = append(v.ToName, name)
	return idx
}

// Index 返回名称的索引，未登记返回 (0, false)。
func (v *Vocabulary) Index(name string) (int, bool) {
	idx, ok := v.ToIndex[name]
	return idx, ok
}

// Name 返回索引对应的名称，越界返回空串。
func (v *Vocabulary) Name(idx int) string {
	if idx < 0 || idx >= len(v.ToName) {
		return ""
	}
	return v.ToName[idx]
}

// Size 返回词表大小（即模型的 num_menus）。
func (v *Vocabulary) Size() int {
	return len(v.ToName)
}
