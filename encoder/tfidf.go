package encoder

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TFIDFVectorizer 是固定维度的文本向量化器：unigram+bigram，词表上限 maxFeatures。
// 词表在 Fit 时按语料词频取 Top-N 固定下来；Transform 对未登录词静默忽略。
// Fit 之前 Transform 返回全零向量（降级行为，不是错误）。
type TFIDFVectorizer struct {
	MaxFeatures int            `json:"max_features"`
	Vocab       map[string]int `json:"vocab"` // term -> 列号
	IDF         []float64      `json:"idf"`
}

// NewTFIDFVectorizer 创建向量化器，maxFeatures 即输出维度。
func NewTFIDFVectorizer(maxFeatures int) *TFIDFVectorizer {
	return &TFIDFVectorizer{MaxFeatures: maxFeatures}
}

// Fitted 返回词表是否已构建。
func (t *TFIDFVectorizer) Fitted() bool {
	return len(t.Vocab) > 0
}

// Fit 从语料构建词表与 IDF。
// 词表按语料总词频降序取前 MaxFeatures 个，同频按字典序，保证确定性。
func (t *TFIDFVectorizer) Fit(docs []string) {
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)

	for _, doc := range docs {
		terms := ngrams(tokenize(doc))
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			termFreq[term]++
			if !seen[term] {
				docFreq[term]++
				seen[term] = true
			}
		}
	}

	type entry struct {
		term  string
		count int
	}
	entries := make([]entry, 0, len(termFreq))
	for term, count := range termFreq {
		entries = append(entries, entry{term, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].term < entries[j].term
	})

	limit := t.MaxFeatures
	if limit > len(entries) {
		limit = len(entries)
	}

	t.Vocab = make(map[string]int, limit)
	t.IDF = make([]float64, t.MaxFeatures)
	n := float64(len(docs))
	for i := 0; i < limit; i++ {
		term := entries[i].term
		t.Vocab[term] = i
		// 平滑 IDF：ln((1+n)/(1+df)) + 1
		t.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
}

// Transform 将单个文本转为固定维度 TF-IDF 向量（L2 归一化）。
func (t *TFIDFVectorizer) Transform(doc string) []float64 {
	vec := make([]float64, t.MaxFeatures)
	if !t.Fitted() {
		return vec
	}

	for _, term := range ngrams(tokenize(doc)) {
		if col, ok := t.Vocab[term]; ok {
			vec[col] += t.IDF[col]
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// tokenize 按非字母数字切分并转小写。
// 菜单名里全角空格、"＆"、"　" 等都是自然分隔符；单字符 token 保留
// （日文菜名中单枚汉字也有区分度）。
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// ngrams 生成 unigram + 相邻 bigram。
func ngrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
