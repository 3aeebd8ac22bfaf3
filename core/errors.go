package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message），调用方按 Code 分支
//   - 训练/加载类错误永远致命；单日期处理错误由批处理捕获后跳过
type DomainError struct {
	Code    string // 错误代码（如 "DATA_INSUFFICIENT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "train", "encoder", "artifact"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	// ErrorCodeDataInsufficient 日期数不足以构成上下文窗口，或训练语料为空
	ErrorCodeDataInsufficient = "DATA_INSUFFICIENT"
	// ErrorCodeDimensionMismatch 编码维度/词表大小与模型权重不一致
	ErrorCodeDimensionMismatch = "DIMENSION_MISMATCH"
	// ErrorCodeConfiguration 配置无效（空语料 fit、非法权重组合等）
	ErrorCodeConfiguration = "CONFIGURATION"
	// ErrorCodeMissingDate 请求的日期不在已加载的序列里
	ErrorCodeMissingDate = "MISSING_DATE"
	// 通用错误代码
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeNotSupported = "NOT_SUPPORTED"
	ErrorCodeInvalidInput = "INVALID_INPUT"
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleEncoder  = "encoder"
	ModuleModel    = "model"
	ModuleTrain    = "train"
	ModuleArtifact = "artifact"
	ModuleRerank   = "rerank"
	ModuleCatalog  = "catalog"
	ModuleConfig   = "config"
	ModuleRecomm   = "recommend"
)

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsDataInsufficient 检查错误是否为数据不足
func IsDataInsufficient(err error) bool { return hasCode(err, ErrorCodeDataInsufficient) }

// IsDimensionMismatch 检查错误是否为维度不匹配
func IsDimensionMismatch(err error) bool { return hasCode(err, ErrorCodeDimensionMismatch) }

// IsConfiguration 检查错误是否为配置错误
func IsConfiguration(err error) bool { return hasCode(err, ErrorCodeConfiguration) }

// IsMissingDate 检查错误是否为日期缺失
func IsMissingDate(err error) bool { return hasCode(err, ErrorCodeMissingDate) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsInvalidInput 检查错误是否为非法输入
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }
