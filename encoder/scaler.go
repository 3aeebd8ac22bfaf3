package encoder

import "math"

// StandardScaler 是按位置索引的 Z-score 标准化器。
// 公式: z = (x - μ) / σ；σ 为 0 的维度只做去均值，避免除零。
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit 从样本矩阵估计每个维度的均值与标准差（总体标准差）。
// 样本数不足 2 时不建立统计量，Transform 退化为恒等。
func (s *StandardScaler) Fit(rows [][]float64) {
	if len(rows) < 2 {
		s.Mean, s.Std = nil, nil
		return
	}
	dim := len(rows[0])
	s.Mean = make([]float64, dim)
	s.Std = make([]float64, dim)

	for _, row := range rows {
		for j := 0; j < dim && j < len(row); j++ {
			s.Mean[j] += row[j]
		}
	}
	n := float64(len(rows))
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range rows {
		for j := 0; j < dim && j < len(row); j++ {
			d := row[j] - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
	}
}

// Fitted 返回统计量是否已建立。
func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0
}

// Transform 标准化单个向量，返回新切片。
func (s *StandardScaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	if !s.Fitted() {
		return out
	}
	for j := 0; j < len(out) && j < len(s.Mean); j++ {
		out[j] -= s.Mean[j]
		if s.Std[j] > 0 {
			out[j] /= s.Std[j]
		}
	}
	return out
}
