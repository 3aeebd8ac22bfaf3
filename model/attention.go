package model

import (
	"math"
	"math/rand"
)

// MultiHeadAttention 是多头自注意力层。
// Q/K/V/输出投影均为共享权重的全连接层，逐 token 施加。
// 前向同时返回注意力权重矩阵 [head][query][key]，供解释层使用。
type MultiHeadAttention struct {
	DModel int `json:"d_model"`
	Heads  int `json:"heads"`

	QProj   *Dense `json:"q_proj"`
	KProj   *Dense `json:"k_proj"`
	VProj   *Dense `json:"v_proj"`
	OutProj *Dense `json:"out_proj"`

	// 训练期缓存
	lastQ    [][][]float64 // [head][T][Dh]
	lastK    [][][]float64
	lastV    [][][]float64
	lastAttn [][][]float64 // [head][T][T]
	seqLen   int
}

func NewMultiHeadAttention(dModel, heads int, rng *rand.Rand) *MultiHeadAttention {
	return &MultiHeadAttention{
		DModel:  dModel,
		Heads:   heads,
		QProj:   NewDense(dModel, dModel, rng),
		KProj:   NewDense(dModel, dModel, rng),
		VProj:   NewDense(dModel, dModel, rng),
		OutProj: NewDense(dModel, dModel, rng),
	}
}

// splitHeads 把 [T][DModel] 切成 [head][T][Dh]。
func (m *MultiHeadAttention) splitHeads(xs [][]float64) [][][]float64 {
	dh := m.DModel / m.Heads
	out := make([][][]float64, m.Heads)
	for h := 0; h < m.Heads; h++ {
		out[h] = make([][]float64, len(xs))
		for t, x := range xs {
			out[h][t] = x[h*dh : (h+1)*dh]
		}
	}
	return out
}

// mergeHeads 把 [head][T][Dh] 拼回 [T][DModel]。
func (m *MultiHeadAttention) mergeHeads(heads [][][]float64, seqLen int) [][]float64 {
	dh := m.DModel / m.Heads
	out := make([][]float64, seqLen)
	for t := 0; t < seqLen; t++ {
		row := make([]float64, m.DModel)
		for h := 0; h < m.Heads; h++ {
			copy(row[h*dh:(h+1)*dh], heads[h][t])
		}
		out[t] = row
	}
	return out
}

// Forward 计算自注意力，返回输出序列与注意力权重 [head][T][T]。
func (m *MultiHeadAttention) Forward(xs [][]float64, train bool) ([][]float64, [][][]float64) {
	seqLen := len(xs)
	dh := m.DModel / m.Heads
	scale := 1.0 / math.Sqrt(float64(dh))

	q := m.splitHeads(m.QProj.ForwardSeq(xs, train))
	k := m.splitHeads(m.KProj.ForwardSeq(xs, train))
	v := m.splitHeads(m.VProj.ForwardSeq(xs, train))

	attn := make([][][]float64, m.Heads)
	headOut := make([][][]float64, m.Heads)
	for h := 0; h < m.Heads; h++ {
		attn[h] = make([][]float64, seqLen)
		headOut[h] = make([][]float64, seqLen)
		for i := 0; i < seqLen; i++ {
			scores := make([]float64, seqLen)
			for j := 0; j < seqLen; j++ {
				dot := 0.0
				for d := 0; d < dh; d++ {
					dot += q[h][i][d] * k[h][j][d]
				}
				scores[j] = dot * scale
			}
			weights := softmax(scores)
			attn[h][i] = weights

			ctx := make([]float64, dh)
			for j := 0; j < seqLen; j++ {
				w := weights[j]
				for d := 0; d < dh; d++ {
					ctx[d] += w * v[h][j][d]
				}
			}
			headOut[h][i] = ctx
		}
	}

	if train {
		m.lastQ, m.lastK, m.lastV = q, k, v
		m.lastAttn = attn
		m.seqLen = seqLen
	}

	out := m.OutProj.ForwardSeq(m.mergeHeads(headOut, seqLen), train)
	return out, attn
}

// Backward 反传注意力梯度，返回对输入序列的梯度。
func (m *MultiHeadAttention) Backward(douts [][]float64) [][]float64 {
	seqLen := m.seqLen
	dh := m.DModel / m.Heads
	scale := 1.0 / math.Sqrt(float64(dh))

	dMerged := m.OutProj.BackwardSeq(douts)
	dHead := m.splitHeads(dMerged)

	dQ := zeros3(m.Heads, seqLen, dh)
	dK := zeros3(m.Heads, seqLen, dh)
	dV := zeros3(m.Heads, seqLen, dh)

	for h := 0; h < m.Heads; h++ {
		for i := 0; i < seqLen; i++ {
			// dV_j += A_ij * dHead_i；dA_ij = dHead_i · V_j
			dA := make([]float64, seqLen)
			for j := 0; j < seqLen; j++ {
				w := m.lastAttn[h][i][j]
				dot := 0.0
				for d := 0; d < dh; d++ {
					dV[h][j][d] += w * dHead[h][i][d]
					dot += dHead[h][i][d] * m.lastV[h][j][d]
				}
				dA[j] = dot
			}
			// softmax 反向：dS_j = A_j * (dA_j - Σ_k dA_k A_k)
			sum := 0.0
			for j := 0; j < seqLen; j++ {
				sum += dA[j] * m.lastAttn[h][i][j]
			}
			for j := 0; j < seqLen; j++ {
				dS := m.lastAttn[h][i][j] * (dA[j] - sum) * scale
				for d := 0; d < dh; d++ {
					dQ[h][i][d] += dS * m.lastK[h][j][d]
					dK[h][j][d] += dS * m.lastQ[h][i][d]
				}
			}
		}
	}

	dxQ := m.QProj.BackwardSeq(m.mergeHeads(dQ, seqLen))
	dxK := m.KProj.BackwardSeq(m.mergeHeads(dK, seqLen))
	dxV := m.VProj.BackwardSeq(m.mergeHeads(dV, seqLen))

	dxs := make([][]float64, seqLen)
	for t := 0; t < seqLen; t++ {
		row := make([]float64, m.DModel)
		for d := 0; d < m.DModel; d++ {
			row[d] = dxQ[t][d] + dxK[t][d] + dxV[t][d]
		}
		dxs[t] = row
	}
	return dxs
}

func (m *MultiHeadAttention) Params() []Param {
	var params []Param
	params = append(params, m.QProj.Params()...)
	params = append(params, m.KProj.Params()...)
	params = append(params, m.VProj.Params()...)
	params = append(params, m.OutProj.Params()...)
	return params
}

func softmax(xs []float64) []float64 {
	max := xs[0]
	for _, v := range xs[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(xs))
	sum := 0.0
	for i, v := range xs {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func zeros3(a, b, c int) [][][]float64 {
	out := make([][][]float64, a)
	for i := range out {
		out[i] = make([][]float64, b)
		for j := range out[i] {
			out[i][j] = make([]float64, c)
		}
	}
	return out
}
