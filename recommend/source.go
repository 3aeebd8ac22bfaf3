package recommend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/shokudo/menukit/core"
)

// MemoryCatalogSource 是内存目录数据源，按日期持有目录快照。
type MemoryCatalogSource struct {
	catalogs map[string]*core.Catalog
	dates    []string
}

func NewMemoryCatalogSource() *MemoryCatalogSource {
	return &MemoryCatalogSource{catalogs: make(map[string]*core.Catalog)}
}

// Add 加入一个日期的目录快照，日期重复时覆盖。
func (s *MemoryCatalogSource) Add(catalog *core.Catalog) {
	if catalog == nil || catalog.Date == "" {
		return
	}
	if _, exists := s.catalogs[catalog.Date]; !exists {
		s.dates = append(s.dates, catalog.Date)
		sort.Strings(s.dates)
	}
	s.catalogs[catalog.Date] = catalog
}

// GetCatalog 实现 core.CatalogSource 接口。
func (s *MemoryCatalogSource) GetCatalog(_ context.Context, date string) (*core.Catalog, error) {
	catalog, ok := s.catalogs[date]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeMissingDate,
			fmt.Sprintf("catalog: no menu data for date %s", date))
	}
	return catalog, nil
}

// Dates 实现 core.CatalogSource 接口，返回升序日期列表。
func (s *MemoryCatalogSource) Dates(_ context.Context) ([]string, error) {
	out := make([]string, len(s.dates))
	copy(out, s.dates)
	return out, nil
}

// MemorySelectionSource 是内存选择履历数据源。
type MemorySelectionSource struct {
	selections map[string][]string
}

func NewMemorySelectionSource() *MemorySelectionSource {
	return &MemorySelectionSource{selections: make(map[string][]string)}
}

// Add 记录一个日期的选择集合。
func (s *MemorySelectionSource) Add(date string, names []string) {
	s.selections[date] = names
}

// GetSelectedNames 实现 core.SelectionSource 接口，无记录返回空集。
func (s *MemorySelectionSource) GetSelectedNames(_ context.Context, date string) ([]string, error) {
	return s.selections[date], nil
}

var (
	_ core.CatalogSource   = (*MemoryCatalogSource)(nil)
	_ core.SelectionSource = (*MemorySelectionSource)(nil)
)

// menuFile 对应数据源的日次菜单文件。
// 营养键直接平铺在菜单对象上，name 以外的键全部归入营养表。
type menuFile struct {
	Menus []map[string]any `json:"menus"`
}

// historyFile 对应数据源的日次选择履历文件。
// 新格式用 selectedMenus，旧格式用 eaten（裸名称列表）。
type historyFile struct {
	SelectedMenus []struct {
		Name string `json:"name"`
	} `json:"selectedMenus"`
	Eaten []string `json:"eaten"`
}

// LoadDataDir 从数据目录加载目录快照与选择履历。
//
// 目录布局（数据采集器的输出格式）：
//
//	<dir>/menus/menus_YYYY-MM-DD.json
//	<dir>/history/YYYY-MM-DD.json
//
// 只保留菜单和履历都存在的日期。
func LoadDataDir(dir string) (*MemoryCatalogSource, *MemorySelectionSource, error) {
	menuPaths, err := filepath.Glob(filepath.Join(dir, "menus", "menus_*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("scan menu files: %w", err)
	}
	sort.Strings(menuPaths)

	catalogs := NewMemoryCatalogSource()
	selections := NewMemorySelectionSource()

	for _, menuPath := range menuPaths {
		base := filepath.Base(menuPath)
		date := strings.TrimSuffix(strings.TrimPrefix(base, "menus_"), ".json")

		historyPath := filepath.Join(dir, "history", date+".json")
		names, err := loadHistoryFile(historyPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("load history %s: %w", date, err)
		}

		catalog, err := loadMenuFile(menuPath, date)
		if err != nil {
			return nil, nil, fmt.Errorf("load menus %s: %w", date, err)
		}

		catalogs.Add(catalog)
		selections.Add(date, names)
	}

	if len(catalogs.dates) == 0 {
		return nil, nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeDataInsufficient,
			fmt.Sprintf("catalog: no usable dates under %s", dir))
	}
	return catalogs, selections, nil
}

func loadMenuFile(path, date string) (*core.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file menuFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	catalog := &core.Catalog{Date: date}
	for _, raw := range file.Menus {
		name, _ := raw["name"].(string)
		if name == "" {
			continue
		}
		nutrition := make(map[string]any, len(raw)-1)
		for k, v := range raw {
			if k == "name" {
				continue
			}
			nutrition[k] = v
		}
		catalog.Items = append(catalog.Items, &core.MenuItem{Name: name, Nutrition: nutrition})
	}
	return catalog, nil
}

func loadHistoryFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.SelectedMenus) > 0 {
		names := make([]string, 0, len(file.SelectedMenus))
		for _, m := range file.SelectedMenus {
			if m.Name != "" {
				names = append(names, m.Name)
			}
		}
		return names, nil
	}
	return file.Eaten, nil
}
