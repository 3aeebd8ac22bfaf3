// Package model 实现序列到集合的 Transformer 推荐模型：
// 纯 Go 的前向与反向传播，权重以 [][]float64 表达，无外部数值框架。
// 模型的输入是按时间排列的菜单向量序列，输出是对整个菜单词表的集合评分。
package model

import (
	"math"
	"math/rand"
)

// Dense 是全连接层。W[out][in] 行对应输出神经元。
type Dense struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`

	// 反向传播缓存（仅训练期使用，推理期不写入）
	lastInput    []float64
	lastSeqInput [][]float64

	// 梯度累积，按 mini-batch 内的样本逐个累加
	GradW [][]float64 `json:"-"`
	GradB []float64   `json:"-"`
}

// NewDense 创建全连接层，权重按 Xavier 均匀分布初始化。
func NewDense(in, out int, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	d := &Dense{
		W: make([][]float64, out),
		B: make([]float64, out),
	}
	for i := range d.W {
		row := make([]float64, in)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * limit
		}
		d.W[i] = row
	}
	d.resetGrads()
	return d
}

func (d *Dense) resetGrads() {
	d.GradW = make([][]float64, len(d.W))
	for i := range d.GradW {
		d.GradW[i] = make([]float64, len(d.W[i]))
	}
	d.GradB = make([]float64, len(d.B))
}

// Forward 计算 y = Wx + b，训练模式下缓存输入供 Backward 使用。
func (d *Dense) Forward(x []float64, train bool) []float64 {
	if train {
		d.lastInput = append(d.lastInput[:0], x...)
	}
	out := make([]float64, len(d.W))
	for i, row := range d.W {
		sum := d.B[i]
		for j, w := range row {
			sum += w * x[j]
		}
		out[i] = sum
	}
	return out
}

// Backward 累加本样本的权重梯度并返回对输入的梯度。
func (d *Dense) Backward(dout []float64) []float64 {
	dx := make([]float64, len(d.W[0]))
	for i, g := range dout {
		d.GradB[i] += g
		row := d.W[i]
		gradRow := d.GradW[i]
		for j := range row {
			gradRow[j] += g * d.lastInput[j]
			dx[j] += g * row[j]
		}
	}
	return dx
}

// ForwardSeq 对序列逐 token 应用同一组权重，缓存每个 token 的输入。
func (d *Dense) ForwardSeq(xs [][]float64, train bool) [][]float64 {
	if train {
		d.lastSeqInput = make([][]float64, len(xs))
	}
	out := make([][]float64, len(xs))
	for t, x := range xs {
		if train {
			cached := make([]float64, len(x))
			copy(cached, x)
			d.lastSeqInput[t] = cached
		}
		y := make([]float64, len(d.W))
		for i, row := range d.W {
			sum := d.B[i]
			for j, w := range row {
				sum += w * x[j]
			}
			y[i] = sum
		}
		out[t] = y
	}
	return out
}

// BackwardSeq 在序列维度上累加梯度，返回逐 token 的输入梯度。
func (d *Dense) BackwardSeq(douts [][]float64) [][]float64 {
	dxs := make([][]float64, len(douts))
	for t, dout := range douts {
		input := d.lastSeqInput[t]
		dx := make([]float64, len(d.W[0]))
		for i, g := range dout {
			d.GradB[i] += g
			row := d.W[i]
			gradRow := d.GradW[i]
			for j := range row {
				gradRow[j] += g * input[j]
				dx[j] += g * row[j]
			}
		}
		dxs[t] = dx
	}
	return dxs
}

// Params 返回本层的参数与梯度对，供优化器更新。
func (d *Dense) Params() []Param {
	params := make([]Param, 0, len(d.W)+1)
	for i := range d.W {
		params = append(params, Param{Value: d.W[i], Grad: d.GradW[i]})
	}
	params = append(params, Param{Value: d.B, Grad: d.GradB, NoDecay: true})
	return params
}

// ReLU 就地前向，返回新切片与掩码。
func relu(x []float64) ([]float64, []bool) {
	out := make([]float64, len(x))
	mask := make([]bool, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
			mask[i] = true
		}
	}
	return out, mask
}

func reluBackward(dout []float64, mask []bool) []float64 {
	dx := make([]float64, len(dout))
	for i, g := range dout {
		if mask[i] {
			dx[i] = g
		}
	}
	return dx
}

// Dropout 训练期按概率 p 置零并以 1/(1-p) 放大（inverted dropout）。
// 推理期恒等。
type Dropout struct {
	P   float64
	rng *rand.Rand

	mask    []float64
	seqMask [][]float64
}

func NewDropout(p float64, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

func (d *Dropout) Forward(x []float64, train bool) []float64 {
	if d == nil || !train || d.P <= 0 {
		return x
	}
	scale := 1.0 / (1.0 - d.P)
	d.mask = make([]float64, len(x))
	out := make([]float64, len(x))
	for i, v := range x {
		if d.rng.Float64() >= d.P {
			d.mask[i] = scale
			out[i] = v * scale
		}
	}
	return out
}

func (d *Dropout) Backward(dout []float64) []float64 {
	if d == nil || d.mask == nil {
		return dout
	}
	dx := make([]float64, len(dout))
	for i, g := range dout {
		dx[i] = g * d.mask[i]
	}
	return dx
}

// ForwardSeq 逐 token 应用 dropout。推理模式恒等且不触碰任何状态，
// 同一模型可以被多个 goroutine 并发前向。
func (d *Dropout) ForwardSeq(xs [][]float64, train bool) [][]float64 {
	if d == nil || !train || d.P <= 0 {
		return xs
	}
	d.seqMask = make([][]float64, len(xs))
	out := make([][]float64, len(xs))
	for t, x := range xs {
		out[t] = d.Forward(x, true)
		d.seqMask[t] = d.mask
	}
	return out
}

func (d *Dropout) BackwardSeq(douts [][]float64) [][]float64 {
	if d == nil || d.seqMask == nil {
		return douts
	}
	dxs := make([][]float64, len(douts))
	for t, dout := range douts {
		d.mask = d.seqMask[t]
		dxs[t] = d.Backward(dout)
	}
	return dxs
}

// LayerNorm 对最后一维做层归一化，带可学习的缩放和偏移。
type LayerNorm struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
	Eps   float64   `json:"eps"`

	lastXhat   []float64
	lastInvStd float64
	seqXhat    [][]float64
	seqInvStd  []float64

	GradGamma []float64 `json:"-"`
	GradBeta  []float64 `json:"-"`
}

func NewLayerNorm(dim int) *LayerNorm {
	ln := &LayerNorm{
		Gamma: make([]float64, dim),
		Beta:  make([]float64, dim),
		Eps:   1e-5,
	}
	for i := range ln.Gamma {
		ln.Gamma[i] = 1.0
	}
	ln.resetGrads()
	return ln
}

func (l *LayerNorm) resetGrads() {
	l.GradGamma = make([]float64, len(l.Gamma))
	l.GradBeta = make([]float64, len(l.Beta))
}

func (l *LayerNorm) Forward(x []float64, train bool) []float64 {
	n := float64(len(x))
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= n
	variance := 0.0
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	variance /= n
	invStd := 1.0 / math.Sqrt(variance+l.Eps)

	out := make([]float64, len(x))
	xhat := make([]float64, len(x))
	for i, v := range x {
		xhat[i] = (v - mean) * invStd
		out[i] = xhat[i]*l.Gamma[i] + l.Beta[i]
	}
	if train {
		l.lastXhat = xhat
		l.lastInvStd = invStd
	}
	return out
}

// Backward 使用标准层归一化梯度公式：
// dx = invStd * (dxhat - mean(dxhat) - xhat * mean(dxhat ⊙ xhat))
func (l *LayerNorm) Backward(dout []float64) []float64 {
	n := float64(len(dout))
	dxhat := make([]float64, len(dout))
	meanDxhat := 0.0
	meanDxhatXhat := 0.0
	for i, g := range dout {
		l.GradGamma[i] += g * l.lastXhat[i]
		l.GradBeta[i] += g
		dxhat[i] = g * l.Gamma[i]
		meanDxhat += dxhat[i]
		meanDxhatXhat += dxhat[i] * l.lastXhat[i]
	}
	meanDxhat /= n
	meanDxhatXhat /= n

	dx := make([]float64, len(dout))
	for i := range dx {
		dx[i] = l.lastInvStd * (dxhat[i] - meanDxhat - l.lastXhat[i]*meanDxhatXhat)
	}
	return dx
}

// ForwardSeq 逐 token 归一化，缓存逐 token 的统计量。
func (l *LayerNorm) ForwardSeq(xs [][]float64, train bool) [][]float64 {
	if train {
		l.seqXhat = make([][]float64, len(xs))
		l.seqInvStd = make([]float64, len(xs))
	}
	out := make([][]float64, len(xs))
	for t, x := range xs {
		out[t] = l.Forward(x, train)
		if train {
			l.seqXhat[t] = l.lastXhat
			l.seqInvStd[t] = l.lastInvStd
		}
	}
	return out
}

func (l *LayerNorm) BackwardSeq(douts [][]float64) [][]float64 {
	dxs := make([][]float64, len(douts))
	for t, dout := range douts {
		l.lastXhat = l.seqXhat[t]
		l.lastInvStd = l.seqInvStd[t]
		dxs[t] = l.Backward(dout)
	}
	return dxs
}

func (l *LayerNorm) Params() []Param {
	return []Param{
		{Value: l.Gamma, Grad: l.GradGamma, NoDecay: true},
		{Value: l.Beta, Grad: l.GradBeta, NoDecay: true},
	}
}
