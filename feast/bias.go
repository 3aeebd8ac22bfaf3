package feast

import (
	"context"

	"github.com/shokudo/menukit/core"
)

// DefaultBiasFeature 是离线管线物化的菜单评分偏置特征。
const DefaultBiasFeature = "menu_stats:rating_bias"

// BiasAdapter 把 Feast 在线特征适配为 core.BiasSource。
//
// 特征值应已落在 [-0.5, 0.5]，读取后仍会夹取一次。
// 特征缺失的菜单视为中性（偏置 0）。
type BiasAdapter struct {
	Client Client

	// Feature 偏置特征名称，为空使用 DefaultBiasFeature
	Feature string

	// EntityKey 实体键名称，为空使用 "menu_name"
	EntityKey string
}

func NewBiasAdapter(client Client) *BiasAdapter {
	return &BiasAdapter{Client: client}
}

// GetBias 获取菜单的偏好偏置（实现 core.BiasSource 接口）
func (a *BiasAdapter) GetBias(ctx context.Context, menuName string) (float64, error) {
	feature := a.Feature
	if feature == "" {
		feature = DefaultBiasFeature
	}
	entityKey := a.EntityKey
	if entityKey == "" {
		entityKey = "menu_name"
	}

	resp, err := a.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   []string{feature},
		EntityRows: []map[string]interface{}{{entityKey: menuName}},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.FeatureVectors) == 0 {
		return 0, nil
	}
	v, ok := resp.FeatureVectors[0].Values[feature]
	if !ok {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, nil
	}
	return core.ClampBias(f), nil
}

var _ core.BiasSource = (*BiasAdapter)(nil)
