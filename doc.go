// Package menukit 是一个食堂菜单套餐推荐工具包。
//
// 设计要点：
// - Pipeline-first: 推荐逻辑通过 Node 串联（Rank → Filter → ReRank → PostProcess）
// - 序列到集合: Seq2SetTransformer 从近期选菜序列预测当日的菜单集合
// - 营养感知: 多样性/营养匹配/整套均衡多目标重排，附带可解释的理由标签
package menukit

import "github.com/shokudo/menukit/pipeline"

// 轻量 facade：便于用户直接 import "menukit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
