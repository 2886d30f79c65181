package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Lister is the slice of ModuleRuntime the detail scan needs; test doubles
// implement just this.
type Lister interface {
	List(ctx context.Context) ([]Module, error)
}

// Remover extends Lister with single-module removal, the slice of
// ModuleRuntime that RemoveAll needs.
type Remover interface {
	Lister
	Remove(ctx context.Context, id string) error
}

// ListWithDetails takes a snapshot via l.List, queries every snapshot
// member's state concurrently, and streams (module, state) pairs in
// completion order.
//
// The snapshot is inherently racy against concurrent deletion: a module can
// vanish between List and its state query. Such queries fail with
// ErrNotFound and are dropped silently rather than failing the scan. Any
// other failure (including a failed List) is delivered as a terminal
// element with Err set, after which the stream closes and outstanding
// queries are abandoned.
func ListWithDetails(ctx context.Context, l Lister) <-chan ModuleDetail {
	out := make(chan ModuleDetail)

	go func() {
		defer close(out)

		modules, err := l.List(ctx)
		if err != nil {
			deliver(ctx, out, ModuleDetail{Err: err})
			return
		}

		scanCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Buffered to the snapshot size so in-flight queries never block
		// after the consumer walks away.
		results := make(chan ModuleDetail, len(modules))
		var wg sync.WaitGroup
		for _, m := range modules {
			wg.Add(1)
			go func(m Module) {
				defer wg.Done()
				state, err := m.RuntimeState(scanCtx)
				results <- ModuleDetail{Module: m, State: state, Err: err}
			}(m)
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		for detail := range results {
			if detail.Err != nil {
				if IsNotFound(detail.Err) {
					// Deleted after the snapshot was taken; not an error
					// for this scan.
					continue
				}
				deliver(ctx, out, ModuleDetail{Err: detail.Err})
				return
			}
			if !deliver(ctx, out, detail) {
				return
			}
		}
	}()

	return out
}

func deliver(ctx context.Context, out chan<- ModuleDetail, d ModuleDetail) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// RemoveAll lists the owned module set and removes every member
// concurrently. Each member is attempted exactly once, all attempts are
// awaited, and the first error observed is returned. A failing removal
// does not cancel its siblings; they run to completion on the caller's
// context.
func RemoveAll(ctx context.Context, r Remover) error {
	modules, err := r.List(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, m := range modules {
		name := m.Name()
		g.Go(func() error {
			return r.Remove(ctx, name)
		})
	}
	return g.Wait()
}
