// Package artifact 把一次训练的全部产物（词表、编码器状态、模型配置与权重）
// 作为单一工件持久化。词表、编码器和模型三者的维度互相耦合，
// 拆开保存迟早会加载到不匹配的组合，所以必须整体读写并在加载时校验。
package artifact

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/shokudo/menukit/core"
	"github.com/shokudo/menukit/encoder"
	"github.com/shokudo/menukit/model"
)

// Artifact 是可部署的训练产物。
type Artifact struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Vocabulary   *core.Vocabulary          `json:"vocabulary"`
	EncoderState *encoder.State            `json:"encoder_state"`
	Model        *model.Seq2SetTransformer `json:"model"`
}

// New 组装一个工件。
func New(version string, vocab *core.Vocabulary, enc *encoder.MenuEncoder, m *model.Seq2SetTransformer) *Artifact {
	return &Artifact{
		Version:      version,
		CreatedAt:    time.Now().UTC(),
		Vocabulary:   vocab,
		EncoderState: enc.State(),
		Model:        m,
	}
}

// Save 原子化写盘：先写临时文件再改名。
func (a *Artifact) Save(path string) error {
	data, err := json.Marshal(a)
	if err != nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeConfiguration,
			fmt.Sprintf("artifact: marshal: %v", err))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load 读取并校验工件。词表宽度、编码维度与模型结构不一致时
// 返回 DIMENSION_MISMATCH，这是部署级致命错误。
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotFound,
				fmt.Sprintf("artifact: %s not found", path))
		}
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeConfiguration,
			fmt.Sprintf("artifact: unmarshal: %v", err))
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.Model.ZeroGrads()
	return &a, nil
}

// Validate 逐项校验工件内部的一致性。
func (a *Artifact) Validate() error {
	if a.Vocabulary == nil || a.EncoderState == nil || a.Model == nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeConfiguration,
			"artifact: missing vocabulary, encoder state or model")
	}
	if got, want := a.Vocabulary.Size(), a.Model.Cfg.NumMenus; got != want {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeDimensionMismatch,
			fmt.Sprintf("artifact: vocabulary size %d, model output width %d", got, want))
	}
	restored, err := encoder.Restore(a.EncoderState)
	if err != nil {
		return err
	}
	if got, want := restored.Dim(), a.Model.Cfg.InputDim; got != want {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeDimensionMismatch,
			fmt.Sprintf("artifact: encoder dim %d, model input width %d", got, want))
	}
	if len(a.Model.Embeddings) != a.Model.Cfg.NumMenus {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeDimensionMismatch,
			fmt.Sprintf("artifact: embedding rows %d, num_menus %d", len(a.Model.Embeddings), a.Model.Cfg.NumMenus))
	}
	return nil
}

// Encoder 从工件状态重建编码器。
func (a *Artifact) Encoder() (*encoder.MenuEncoder, error) {
	return encoder.Restore(a.EncoderState)
}
