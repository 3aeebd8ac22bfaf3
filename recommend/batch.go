package recommend

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shokudo/menukit/core"
)

// BatchGenerate 为目录里的全部日期批量生成推荐。
//
// 单日失败（上下文不足、当日无候选等）记录日志后跳过，不中断整批；
// 只有 ctx 取消会让整批提前返回。
//
// parallelism > 1 时并行生成。制品在加载后不可变，
// 各日期的 Forward 互不共享可变状态，并行是安全的。
func (r *Recommender) BatchGenerate(ctx context.Context, base core.RecommendContext, parallelism int) (map[string]*Result, error) {
	dates, err := r.Catalogs.Dates(ctx)
	if err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = 1
	}

	var mu sync.Mutex
	results := make(map[string]*Result, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, date := range dates {
		date := date
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rctx := base
			rctx.Date = date
			// Params 会被打分节点写入注意力权重，各日期必须独享
			rctx.Params = nil
			result, err := r.RecommendForDate(gctx, &rctx)
			if err != nil {
				r.Log.Warn().
					Str("date", date).
					Err(err).
					Msg("skip date")
				return nil
			}

			mu.Lock()
			results[date] = result
			mu.Unlock()

			r.Log.Debug().
				Str("date", date).
				Int("items", len(result.Items)).
				Msg("generated")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
