package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
)

// RatingStore 用 SQLite 保存用户星级评分与 A/B 分组记录。
// 菜单的历史平均星级被折算成 [-0.5, 0.5] 的偏好偏置，
// 实现 core.BiasSource 供打分节点消费。
type RatingStore struct {
	db *sql.DB
}

// MenuRating 是某个菜单的评分汇总。
type MenuRating struct {
	MenuName string  `json:"menu_name"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// ABAssignment 是一次 A/B 分组及其推荐结果记录。
type ABAssignment struct {
	TestName string    `json:"test_name"`
	UserID   string    `json:"user_id"`
	Variant  string    `json:"variant"` // "control" 或 "treatment"
	Date     string    `json:"date"`
	Menus    string    `json:"menus"` // 推荐集合，'|' 连接
	Created  time.Time `json:"created"`
}

func NewRatingStore(dbPath string) (*RatingStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &RatingStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *RatingStore) Close() error {
	return s.db.Close()
}

func (s *RatingStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS ratings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        menu_name TEXT NOT NULL,
        stars INTEGER NOT NULL,
        comment TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ab_assignments (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        test_name TEXT NOT NULL,
        user_id TEXT NOT NULL,
        variant TEXT NOT NULL,
        date TEXT NOT NULL,
        menus TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_ratings_menu ON ratings(menu_name);
    CREATE INDEX IF NOT EXISTS idx_ab_test_user ON ab_assignments(test_name, user_id);
    `
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRating 保存一条星级评分，stars 必须在 1..5。
func (s *RatingStore) SaveRating(ctx context.Context, userID, menuName string, stars int, comment string) error {
	if stars < 1 || stars > 5 {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("store: stars %d out of range 1..5", stars))
	}
	if menuName == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			"store: empty menu name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (user_id, menu_name, stars, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, menuName, stars, comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert rating: %w", err)
	}
	return nil
}

// GetMenuRating 返回菜单的平均星级与评分次数，无评分时 Count 为 0。
func (s *RatingStore) GetMenuRating(ctx context.Context, menuName string) (*MenuRating, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(stars), 0), COUNT(*) FROM ratings WHERE menu_name = ?`, menuName)

	rating := &MenuRating{MenuName: menuName}
	if err := row.Scan(&rating.Average, &rating.Count); err != nil {
		return nil, fmt.Errorf("failed to query rating: %w", err)
	}
	return rating, nil
}

// GetBias 把平均星级映射为偏好偏置：clamp((avg - 3) / 4, -0.5, 0.5)。
// 3 星为中性，无评分的菜单返回 0。
func (s *RatingStore) GetBias(ctx context.Context, menuName string) (float64, error) {
	rating, err := s.GetMenuRating(ctx, menuName)
	if err != nil {
		return 0, err
	}
	if rating.Count == 0 {
		return 0, nil
	}
	return core.ClampBias((rating.Average - 3) / 4), nil
}

// CategoryPreference 是某个菜单类别的评分汇总。
type CategoryPreference struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// GetCategoryPreferences 按关键词类别聚合全部评分。
// 一条评分的菜单名命中几个类别就计入几个类别，未命中任何类别的评分被忽略。
func (s *RatingStore) GetCategoryPreferences(ctx context.Context) (map[string]CategoryPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT menu_name, AVG(stars), COUNT(*) FROM ratings GROUP BY menu_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	categories := encoder.DefaultCategories()
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var avg float64
		var count int
		if err := rows.Scan(&name, &avg, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		for _, cat := range encoder.MatchedCategories(name, categories) {
			sums[cat] += avg * float64(count)
			counts[cat] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ratings: %w", err)
	}

	prefs := make(map[string]CategoryPreference, len(counts))
	for cat, n := range counts {
		prefs[cat] = CategoryPreference{
			Category: cat,
			Average:  sums[cat] / float64(n),
			Count:    n,
		}
	}
	return prefs, nil
}

// SaveAssignment 记录一次 A/B 分组与当期推荐集合。
func (s *RatingStore) SaveAssignment(ctx context.Context, a *ABAssignment) error {
	if a.Variant != "control" && a.Variant != "treatment" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("store: variant %q must be control or treatment", a.Variant))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ab_assignments (test_name, user_id, variant, date, menus, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.TestName, a.UserID, a.Variant, a.Date, a.Menus, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignment 返回用户在某个测试里最近一次的分组，无记录返回 NotFound。
func (s *RatingStore) GetAssignment(ctx context.Context, testName, userID string) (*ABAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT test_name, user_id, variant, date, menus, created_at
         FROM ab_assignments WHERE test_name = ? AND user_id = ?
         ORDER BY id DESC LIMIT 1`, testName, userID)

	var a ABAssignment
	err := row.Scan(&a.TestName, &a.UserID, &a.Variant, &a.Date, &a.Menus, &a.Created)
	if err == sql.ErrNoRows {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment: %w", err)
	}
	return &a, nil
}

var _ core.BiasSource = (*RatingStore)(nil)
