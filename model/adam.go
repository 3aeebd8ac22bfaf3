package model

import "math"

// Adam 是带权重衰减与全局范数裁剪的 Adam 优化器。
// 优化器按 Params() 返回的切片顺序维护一阶与二阶动量，
// 同一模型的 Params() 顺序在整个训练过程中必须稳定。
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	ClipNorm    float64 // <=0 表示不裁剪

	step int
	m    [][]float64
	v    [][]float64
}

// NewAdam 创建默认超参的优化器：lr 1e-3，weight decay 1e-5，裁剪范数 1.0。
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: 1e-5,
		ClipNorm:    1.0,
	}
}

// Step 按累积梯度更新一次参数。调用方负责在更新后清零梯度。
func (a *Adam) Step(params []Param) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p.Value))
			a.v[i] = make([]float64, len(p.Value))
		}
	}

	if a.ClipNorm > 0 {
		clipGlobalNorm(params, a.ClipNorm)
	}

	a.step++
	bc1 := 1.0 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1.0 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range params {
		m := a.m[i]
		v := a.v[i]
		for j, g := range p.Grad {
			if a.WeightDecay > 0 && !p.NoDecay {
				g += a.WeightDecay * p.Value[j]
			}
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mhat := m[j] / bc1
			vhat := v[j] / bc2
			p.Value[j] -= a.LR * mhat / (math.Sqrt(vhat) + a.Eps)
		}
	}
}

// clipGlobalNorm 把全部梯度按全局 L2 范数缩放到 maxNorm 以内。
func clipGlobalNorm(params []Param, maxNorm float64) {
	total := 0.0
	for _, p := range params {
		for _, g := range p.Grad {
			total += g * g
		}
	}
	norm := math.Sqrt(total)
	if norm <= maxNorm {
		return
	}
	scale := maxNorm / (norm + 1e-12)
	for _, p := range params {
		for j := range p.Grad {
			p.Grad[j] *= scale
		}
	}
}

// PlateauScheduler 在验证损失停滞时按比例降低学习率。
// 连续 Patience 个 epoch 无改善即触发一次衰减。
type PlateauScheduler struct {
	Factor   float64
	Patience int
	MinLR    float64

	best    float64
	counter int
	started bool
}

// NewPlateauScheduler 创建默认调度器：factor 0.5，patience 5。
func NewPlateauScheduler() *PlateauScheduler {
	return &PlateauScheduler{Factor: 0.5, Patience: 5, MinLR: 1e-6}
}

// Observe 记录一个 epoch 的验证损失，必要时调整优化器学习率。
// 返回是否触发了衰减。
func (s *PlateauScheduler) Observe(valLoss float64, opt *Adam) bool {
	if !s.started || valLoss < s.best {
		s.best = valLoss
		s.started = true
		s.counter = 0
		return false
	}
	s.counter++
	if s.counter < s.Patience {
		return false
	}
	s.counter = 0
	next := opt.LR * s.Factor
	if next < s.MinLR {
		next = s.MinLR
	}
	opt.LR = next
	return true
}
