package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// AggregateError is returned when every subject of a batch failed.
type AggregateError struct {
	Source string
	Errs   []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: all %d requests failed: %s", e.Source, len(e.Errs), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error { return e.Errs }

// FetchAll 每个 subject 一次请求（并发度 limit），失败的 subject 被丢弃。
// 结果保持 subjects 的顺序；全部失败时返回 *AggregateError。
func FetchAll[S any, T any](ctx context.Context, source string, subjects []S, limit int, fn func(ctx context.Context, s S) (T, error)) ([]T, error) {
	if len(subjects) == 0 {
		return nil, nil
	}

	results := make([]T, len(subjects))
	errs := make([]error, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range subjects {
		i, s := i, s
		g.Go(func() error {
			v, err := fn(gctx, s)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = v
			return nil
		})
	}
	_ = g.Wait()

	out := make([]T, 0, len(subjects))
	var failed []error
	for i := range subjects {
		if errs[i] != nil {
			log.Warn().Str("source", source).Str("subject", fmt.Sprint(subjects[i])).Err(errs[i]).Msg("subject fetch failed, dropped")
			failed = append(failed, errs[i])
			continue
		}
		out = append(out, results[i])
	}

	if len(out) == 0 {
		return nil, &AggregateError{Source: source, Errs: failed}
	}
	return out, nil
}
