// Package feast 封装 Feast Feature Store 的在线特征读取。
//
// 食堂场景下，菜单级别的统计特征（历史评分偏置、近 30 天选择率等）
// 由离线管线物化到 Feast 在线存储，推荐服务在打分前按菜名取回。
//
// 参考：https://github.com/feast-dev/feast
package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的在线特征客户端接口。
//
// 设计原则：
//   - 领域层只依赖该接口，gRPC 实现位于基础设施层
//   - 高内聚低耦合：可替换为内存实现用于测试
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时打分）
	//
	// 参数：
	//   - features: 特征名称列表，例如 ["menu_stats:rating_bias"]
	//   - entityRows: 实体行，例如 [{"menu_name": "カレーライス"}]
	//
	// 返回每个实体行对应的特征向量。
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["menu_stats:rating_bias", "menu_stats:pick_rate_30d"]
	Features []string

	// EntityRows 实体行，例如 [{"menu_name": "カレーライス"}]
	EntityRows []map[string]interface{}

	// Project 项目名称（可选，为空使用客户端默认值）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称
	Values map[string]interface{}

	// EntityRow 对应的实体行
	EntityRow map[string]interface{}
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 超时时间
	Timeout time.Duration

	// StaticToken 静态 Token 认证（可选）
	StaticToken string
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithStaticToken 配置选项：设置静态 Token 认证
func WithStaticToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.StaticToken = token
	}
}
