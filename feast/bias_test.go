package feast

import (
	"context"
	"math"
	"testing"
)

// fakeClient 用内存 map 模拟在线特征存储。
type fakeClient struct {
	biases map[string]float64
}

func (f *fakeClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	vectors := make([]FeatureVector, len(req.EntityRows))
	for i, row := range req.EntityRows {
		values := make(map[string]interface{})
		name, _ := row["menu_name"].(string)
		if bias, ok := f.biases[name]; ok {
			values[req.Features[0]] = bias
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: row}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

func (f *fakeClient) Close() error { return nil }

func TestBiasAdapter(t *testing.T) {
	adapter := NewBiasAdapter(&fakeClient{biases: map[string]float64{
		"カレーライス": 0.4,
		"冷や奴":    -0.2,
		"唐揚げ":    2.0, // 夹取到 0.5
	}})
	ctx := context.Background()

	tests := []struct {
		menu string
		want float64
	}{
		{"カレーライス", 0.4},
		{"冷や奴", -0.2},
		{"唐揚げ", 0.5},
		{"未知の料理", 0},
	}
	for _, tt := range tests {
		got, err := adapter.GetBias(ctx, tt.menu)
		if err != nil {
			t.Fatalf("%s: %v", tt.menu, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("GetBias(%s) = %v, want %v", tt.menu, got, tt.want)
		}
	}
}
