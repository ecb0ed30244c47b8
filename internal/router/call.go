package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/nip-resolver/internal/model"
)

// call runs one collaborator call under the step timeout. The wait is
// bounded even when fn ignores its context, and a panic in fn becomes an
// unavailable outcome.
func call[T any](ctx context.Context, x *run, op string, fn func(ctx context.Context) model.Outcome[T]) model.Outcome[T] {
	cctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	done := make(chan model.Outcome[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- model.Unavailable[T](fmt.Sprintf("%s: panic: %v", op, p))
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case out := <-done:
		if !out.OK && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return model.Unavailable[T](fmt.Sprintf("%s: timed out after %s", op, x.timeout))
		}
		return out
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return model.Unavailable[T](fmt.Sprintf("%s: timed out after %s", op, x.timeout))
		}
		return model.Unavailable[T](fmt.Sprintf("%s: %v", op, cctx.Err()))
	}
}
