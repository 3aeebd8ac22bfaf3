package model

import "math"

const jaccardEps = 1e-8

// Sigmoid 是标准 logistic 函数。
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// JaccardLoss 计算 1 - Jaccard 软相似度。
// 分子是 σ(logit) 与 0/1 目标的逐位乘积和，梯度只经分子回传；
// 分母按 σ(logit)+target > 0 的位置数统计，视为常数。
//
// Forward 返回单条样本的损失；Grad 返回对 logit 的梯度。
type JaccardLoss struct{}

// Forward 计算单样本损失。predictions 是原始 logit，targets 取值 0/1。
func (JaccardLoss) Forward(predictions, targets []float64) float64 {
	intersection := 0.0
	union := 0.0
	for i, x := range predictions {
		p := Sigmoid(x)
		intersection += p * targets[i]
		if p+targets[i] > 0 {
			union++
		}
	}
	return 1.0 - intersection/(union+jaccardEps)
}

// Grad 返回 dLoss/dlogit。scale 用于 mini-batch 内按样本数平均。
func (JaccardLoss) Grad(predictions, targets []float64, scale float64) []float64 {
	union := 0.0
	for i, x := range predictions {
		if Sigmoid(x)+targets[i] > 0 {
			union++
		}
	}
	inv := 1.0 / (union + jaccardEps)

	grad := make([]float64, len(predictions))
	for i, x := range predictions {
		if targets[i] == 0 {
			continue
		}
		p := Sigmoid(x)
		// d(1 - Σ σ(x)·t / U)/dx = -t · σ(x)(1-σ(x)) / U
		grad[i] = -targets[i] * p * (1 - p) * inv * scale
	}
	return grad
}
