package model

import (
	"fmt"
	"math/rand"

	"github.com/shokudo/menukit/core"
)

// Param 是一段可训练参数与其梯度的配对。
// NoDecay 标记偏置与归一化参数，优化器对它们跳过权重衰减。
type Param struct {
	Value   []float64
	Grad    []float64
	NoDecay bool
}

// Config 是 Seq2SetTransformer 的结构配置。
// 结构参数一旦训练完成即不可变，推理加载时逐项校验。
type Config struct {
	InputDim   int     `json:"input_dim"`
	DModel     int     `json:"d_model"`
	Heads      int     `json:"heads"`
	Layers     int     `json:"layers"`
	FFNDim     int     `json:"ffn_dim"`
	Dropout    float64 `json:"dropout"`
	NumMenus   int     `json:"num_menus"`
	ContextLen int     `json:"context_len"`
}

// DefaultConfig 返回默认结构：68 → 128，4 头 2 层，FFN 256。
func DefaultConfig(inputDim, numMenus int) Config {
	return Config{
		InputDim:   inputDim,
		DModel:     128,
		Heads:      4,
		Layers:     2,
		FFNDim:     256,
		Dropout:    0.2,
		NumMenus:   numMenus,
		ContextLen: 7,
	}
}

// EncoderLayer 是一个后归一化的 Transformer 编码器块：
// 自注意力 + 残差 + LayerNorm，前馈 + 残差 + LayerNorm。
type EncoderLayer struct {
	Attn    *MultiHeadAttention `json:"attn"`
	Linear1 *Dense              `json:"linear1"`
	Linear2 *Dense              `json:"linear2"`
	Norm1   *LayerNorm          `json:"norm1"`
	Norm2   *LayerNorm          `json:"norm2"`

	dropout *Dropout

	reluMasks [][]bool
}

func NewEncoderLayer(cfg Config, rng *rand.Rand) *EncoderLayer {
	return &EncoderLayer{
		Attn:    NewMultiHeadAttention(cfg.DModel, cfg.Heads, rng),
		Linear1: NewDense(cfg.DModel, cfg.FFNDim, rng),
		Linear2: NewDense(cfg.FFNDim, cfg.DModel, rng),
		Norm1:   NewLayerNorm(cfg.DModel),
		Norm2:   NewLayerNorm(cfg.DModel),
		dropout: NewDropout(cfg.Dropout, rng),
	}
}

// Forward 返回层输出与本层注意力权重 [head][T][T]。
func (e *EncoderLayer) Forward(xs [][]float64, train bool) ([][]float64, [][][]float64) {
	attnOut, attnWeights := e.Attn.Forward(xs, train)

	sum1 := addSeq(xs, attnOut)
	x1 := e.Norm1.ForwardSeq(sum1, train)

	hidden := e.Linear1.ForwardSeq(x1, train)
	if train {
		e.reluMasks = make([][]bool, len(hidden))
	}
	for t := range hidden {
		var mask []bool
		hidden[t], mask = relu(hidden[t])
		if train {
			e.reluMasks[t] = mask
		}
	}
	hidden = e.dropout.ForwardSeq(hidden, train)
	ff := e.Linear2.ForwardSeq(hidden, train)

	sum2 := addSeq(x1, ff)
	out := e.Norm2.ForwardSeq(sum2, train)
	return out, attnWeights
}

// Backward 反传本层梯度，返回对输入序列的梯度。
func (e *EncoderLayer) Backward(douts [][]float64) [][]float64 {
	dSum2 := e.Norm2.BackwardSeq(douts)

	dHidden := e.Linear2.BackwardSeq(dSum2)
	dHidden = e.dropout.BackwardSeq(dHidden)
	for t := range dHidden {
		dHidden[t] = reluBackward(dHidden[t], e.reluMasks[t])
	}
	dX1FF := e.Linear1.BackwardSeq(dHidden)

	// 残差：x1 同时流向前馈分支与直连分支
	dX1 := addSeq(dSum2, dX1FF)
	dSum1 := e.Norm1.BackwardSeq(dX1)

	dXAttn := e.Attn.Backward(dSum1)
	return addSeq(dSum1, dXAttn)
}

func (e *EncoderLayer) Params() []Param {
	var params []Param
	params = append(params, e.Attn.Params()...)
	params = append(params, e.Linear1.Params()...)
	params = append(params, e.Linear2.Params()...)
	params = append(params, e.Norm1.Params()...)
	params = append(params, e.Norm2.Params()...)
	return params
}

// SetDecoderHead 是集合预测头：上下文向量对全词表每个菜单打分。
// 交互向量 = 上下文投影 + 菜单投影，再与菜单投影拼接过打分 MLP。
type SetDecoderHead struct {
	QProj *Dense `json:"q_proj"`
	VProj *Dense `json:"v_proj"`
	MLP1  *Dense `json:"mlp1"`
	MLP2  *Dense `json:"mlp2"`
	MLP3  *Dense `json:"mlp3"`

	drop1 *Dropout
	drop2 *Dropout

	lastVProj  [][]float64
	reluMasks1 [][]bool
	reluMasks2 [][]bool
}

func NewSetDecoderHead(cfg Config, rng *rand.Rand) *SetDecoderHead {
	return &SetDecoderHead{
		QProj: NewDense(cfg.DModel, cfg.DModel, rng),
		VProj: NewDense(cfg.DModel, cfg.DModel, rng),
		MLP1:  NewDense(cfg.DModel*2, 256, rng),
		MLP2:  NewDense(256, 128, rng),
		MLP3:  NewDense(128, 1, rng),
		drop1: NewDropout(cfg.Dropout, rng),
		drop2: NewDropout(cfg.Dropout, rng),
	}
}

// Forward 返回每个菜单的原始 logit。
func (s *SetDecoderHead) Forward(ctx []float64, embeddings [][]float64, train bool) []float64 {
	cproj := s.QProj.Forward(ctx, train)
	vproj := s.VProj.ForwardSeq(embeddings, train)
	if train {
		s.lastVProj = vproj
	}

	numMenus := len(embeddings)
	combined := make([][]float64, numMenus)
	dModel := len(cproj)
	for m := 0; m < numMenus; m++ {
		row := make([]float64, dModel*2)
		for d := 0; d < dModel; d++ {
			row[d] = cproj[d] + vproj[m][d]
			row[dModel+d] = vproj[m][d]
		}
		combined[m] = row
	}

	h1 := s.MLP1.ForwardSeq(combined, train)
	if train {
		s.reluMasks1 = make([][]bool, numMenus)
	}
	for m := range h1 {
		var mask []bool
		h1[m], mask = relu(h1[m])
		if train {
			s.reluMasks1[m] = mask
		}
	}
	h1 = s.drop1.ForwardSeq(h1, train)

	h2 := s.MLP2.ForwardSeq(h1, train)
	if train {
		s.reluMasks2 = make([][]bool, numMenus)
	}
	for m := range h2 {
		var mask []bool
		h2[m], mask = relu(h2[m])
		if train {
			s.reluMasks2[m] = mask
		}
	}
	h2 = s.drop2.ForwardSeq(h2, train)

	out := s.MLP3.ForwardSeq(h2, train)
	logits := make([]float64, numMenus)
	for m := range out {
		logits[m] = out[m][0]
	}
	return logits
}

// Backward 返回 (对上下文向量的梯度, 对每个菜单嵌入的梯度)。
func (s *SetDecoderHead) Backward(dLogits []float64) ([]float64, [][]float64) {
	numMenus := len(dLogits)
	dOut := make([][]float64, numMenus)
	for m, g := range dLogits {
		dOut[m] = []float64{g}
	}

	dH2 := s.MLP3.BackwardSeq(dOut)
	dH2 = s.drop2.BackwardSeq(dH2)
	for m := range dH2 {
		dH2[m] = reluBackward(dH2[m], s.reluMasks2[m])
	}

	dH1 := s.MLP2.BackwardSeq(dH2)
	dH1 = s.drop1.BackwardSeq(dH1)
	for m := range dH1 {
		dH1[m] = reluBackward(dH1[m], s.reluMasks1[m])
	}

	dCombined := s.MLP1.BackwardSeq(dH1)

	dModel := len(s.lastVProj[0])
	dCproj := make([]float64, dModel)
	dVproj := make([][]float64, numMenus)
	for m := 0; m < numMenus; m++ {
		row := make([]float64, dModel)
		for d := 0; d < dModel; d++ {
			// 交互分量广播到上下文投影，拼接分量与交互分量共同流向菜单投影
			dCproj[d] += dCombined[m][d]
			row[d] = dCombined[m][d] + dCombined[m][dModel+d]
		}
		dVproj[m] = row
	}

	dCtx := s.QProj.Backward(dCproj)
	dEmb := s.VProj.BackwardSeq(dVproj)
	return dCtx, dEmb
}

func (s *SetDecoderHead) Params() []Param {
	var params []Param
	params = append(params, s.QProj.Params()...)
	params = append(params, s.VProj.Params()...)
	params = append(params, s.MLP1.Params()...)
	params = append(params, s.MLP2.Params()...)
	params = append(params, s.MLP3.Params()...)
	return params
}

// Seq2SetTransformer 从菜单向量序列预测整个词表上的集合评分。
//
// 工程特征：
//   - 实时性：好（单次前向即得全词表分数）
//   - 计算复杂度：中等（2 层编码器 + 全词表打分 MLP）
//   - 可解释性：中（注意力权重可追溯到上下文中的具体菜单）
//
// 使用场景：
//   - 根据近期菜单履历预测下一餐的菜单组合
//   - 词表规模在千级以内的集合推荐
type Seq2SetTransformer struct {
	Cfg Config `json:"config"`

	InputProj *Dense          `json:"input_proj"`
	Encoder   []*EncoderLayer `json:"encoder"`
	Decoder   *SetDecoderHead `json:"decoder"`

	// Embeddings 是可训练的全菜单嵌入 [num_menus][d_model]
	Embeddings [][]float64 `json:"embeddings"`

	GradEmb [][]float64 `json:"-"`

	lastSeqLen int
}

// NewSeq2SetTransformer 按配置构建并随机初始化模型。
// seed 固定时初始化可复现。
func NewSeq2SetTransformer(cfg Config, seed int64) (*Seq2SetTransformer, error) {
	if cfg.InputDim <= 0 || cfg.NumMenus <= 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration,
			fmt.Sprintf("model: invalid config input_dim=%d num_menus=%d", cfg.InputDim, cfg.NumMenus))
	}
	if cfg.DModel%cfg.Heads != 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration,
			fmt.Sprintf("model: d_model %d not divisible by heads %d", cfg.DModel, cfg.Heads))
	}
	rng := rand.New(rand.NewSource(seed))

	m := &Seq2SetTransformer{
		Cfg:       cfg,
		InputProj: NewDense(cfg.InputDim, cfg.DModel, rng),
		Decoder:   NewSetDecoderHead(cfg, rng),
	}
	for i := 0; i < cfg.Layers; i++ {
		m.Encoder = append(m.Encoder, NewEncoderLayer(cfg, rng))
	}
	m.Embeddings = make([][]float64, cfg.NumMenus)
	for i := range m.Embeddings {
		row := make([]float64, cfg.DModel)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.1
		}
		m.Embeddings[i] = row
	}
	m.ZeroGrads()
	return m, nil
}

// Forward 前向一条序列，返回全词表 logit 与逐层注意力权重。
// 序列中任一向量维度与 InputDim 不一致视为致命配置错误。
func (m *Seq2SetTransformer) Forward(seq [][]float64, train bool) ([]float64, [][][][]float64, error) {
	if len(seq) == 0 {
		return nil, nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			"model: empty input sequence")
	}
	for t, vec := range seq {
		if len(vec) != m.Cfg.InputDim {
			return nil, nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDimensionMismatch,
				fmt.Sprintf("model: input[%d] dim %d, model expects %d", t, len(vec), m.Cfg.InputDim))
		}
	}
	// 推理路径不写任何模型状态，加载后的模型可并发前向
	if train {
		m.lastSeqLen = len(seq)
	}

	x := m.InputProj.ForwardSeq(seq, train)

	attentions := make([][][][]float64, 0, len(m.Encoder))
	for _, layer := range m.Encoder {
		var attn [][][]float64
		x, attn = layer.Forward(x, train)
		attentions = append(attentions, attn)
	}

	// 上下文向量：序列平均池化
	ctx := make([]float64, m.Cfg.DModel)
	for _, row := range x {
		for d, v := range row {
			ctx[d] += v
		}
	}
	for d := range ctx {
		ctx[d] /= float64(len(x))
	}

	logits := m.Decoder.Forward(ctx, m.Embeddings, train)
	return logits, attentions, nil
}

// Backward 从 logit 梯度反传整个网络，梯度累加进各参数。
func (m *Seq2SetTransformer) Backward(dLogits []float64) {
	dCtx, dEmb := m.Decoder.Backward(dLogits)
	for i, row := range dEmb {
		for d, g := range row {
			m.GradEmb[i][d] += g
		}
	}

	// 平均池化的反向：梯度均分给每个 token
	seqLen := m.lastSeqLen
	douts := make([][]float64, seqLen)
	for t := 0; t < seqLen; t++ {
		row := make([]float64, len(dCtx))
		for d, g := range dCtx {
			row[d] = g / float64(seqLen)
		}
		douts[t] = row
	}

	for i := len(m.Encoder) - 1; i >= 0; i-- {
		douts = m.Encoder[i].Backward(douts)
	}
	m.InputProj.BackwardSeq(douts)
}

// Params 返回全部可训练参数。
func (m *Seq2SetTransformer) Params() []Param {
	var params []Param
	params = append(params, m.InputProj.Params()...)
	for _, layer := range m.Encoder {
		params = append(params, layer.Params()...)
	}
	params = append(params, m.Decoder.Params()...)
	for i := range m.Embeddings {
		params = append(params, Param{Value: m.Embeddings[i], Grad: m.GradEmb[i]})
	}
	return params
}

// ZeroGrads 重新分配全部梯度缓冲。
// 反序列化得到的模型在续训前也必须先调用一次。
func (m *Seq2SetTransformer) ZeroGrads() {
	m.InputProj.resetGrads()
	for _, layer := range m.Encoder {
		layer.Attn.QProj.resetGrads()
		layer.Attn.KProj.resetGrads()
		layer.Attn.VProj.resetGrads()
		layer.Attn.OutProj.resetGrads()
		layer.Linear1.resetGrads()
		layer.Linear2.resetGrads()
		layer.Norm1.resetGrads()
		layer.Norm2.resetGrads()
	}
	m.Decoder.QProj.resetGrads()
	m.Decoder.VProj.resetGrads()
	m.Decoder.MLP1.resetGrads()
	m.Decoder.MLP2.resetGrads()
	m.Decoder.MLP3.resetGrads()

	m.GradEmb = make([][]float64, len(m.Embeddings))
	for i := range m.GradEmb {
		m.GradEmb[i] = make([]float64, m.Cfg.DModel)
	}
}

// EnableDropout 为反序列化后的模型补上训练期的随机源。
// 推理路径不依赖随机源，只有继续训练时才需要调用。
func (m *Seq2SetTransformer) EnableDropout(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, layer := range m.Encoder {
		layer.dropout = NewDropout(m.Cfg.Dropout, rng)
	}
	m.Decoder.drop1 = NewDropout(m.Cfg.Dropout, rng)
	m.Decoder.drop2 = NewDropout(m.Cfg.Dropout, rng)
}

func addSeq(a, b [][]float64) [][]float64 {
	out := make([][]float64, len(a))
	for t := range a {
		row := make([]float64, len(a[t]))
		for d := range row {
			row[d] = a[t][d] + b[t][d]
		}
		out[t] = row
	}
	return out
}
