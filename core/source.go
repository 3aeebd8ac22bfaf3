package core

import "context"

// CatalogSource 是菜单目录数据源：按日期取当天可选菜单。
// 文件/HTTP/存储后端的差异在实现层消化，核心只依赖此接口。
type CatalogSource interface {
	// GetCatalog 取指定日期的目录快照，日期不存在返回 MISSING_DATE
	GetCatalog(ctx context.Context, date string) (*Catalog, error)

	// Dates 返回可用日期列表（升序）
	Dates(ctx context.Context) ([]string, error)
}

// SelectionSource 是选择履历数据源：按日期取用户实际选择的菜单名集合。
type SelectionSource interface {
	// GetSelectedNames 取指定日期的选择集合，无记录时返回空集而非错误
	GetSelectedNames(ctx context.Context, date string) ([]string, error)
}

// BiasSource 提供菜单级的用户偏好偏置，取值范围 [-0.5, 0.5]。
// 偏置由外部（评分存储/特征平台）从星级评分推导，核心只消费不生产。
// 未知菜单返回 0。
type BiasSource interface {
	GetBias(ctx context.Context, menuName string) (float64, error)
}

// ClampBias 将偏置收敛到协议范围 [-0.5, 0.5]。
func ClampBias(b float64) float64 {
	if b > 0.5 {
		return 0.5
	}
	if b < -0.5 {
		return -0.5
	}
	return b
}
