package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Document is one flow submitted to CheckAll. Either model may be nil.
type Document struct {
	Name  string // file name or other caller label
	Def   *schema.FlowDefinition
	Graph *schema.Graph
}

// BatchResult is the outcome for one Document, in submission order.
type BatchResult struct {
	Name   string                   `json:"name"`
	Result *schema.ValidationResult `json:"result,omitempty"`
	Err    error                    `json:"-"`
}

// BatchMetrics counts what a batch did.
type BatchMetrics struct {
	Checked int64 `json:"checked"`
	Invalid int64 `json:"invalid"`
	Panics  int64 `json:"panics"`
}

// ErrBatchCanceled is returned for documents never checked because the
// context ended first.
var ErrBatchCanceled = errors.New("batch canceled before document was checked")

// CheckAll validates documents concurrently, at most PoolSize at a time.
// Results come back in input order; a document whose validation panics gets
// an error result instead of taking the batch down.
func (e *Engine) CheckAll(ctx context.Context, docs []Document) ([]BatchResult, BatchMetrics) {
	results := make([]BatchResult, len(docs))
	pool := newCheckPool(e.cfg.PoolSize)

	for i, doc := range docs {
		results[i].Name = doc.Name
		err := pool.submit(ctx, func() {
			results[i].Result = e.Check(logging.WithTool(ctx, doc.Name), doc.Def, doc.Graph)
			if !results[i].Result.Valid() {
				atomic.AddInt64(&pool.metrics.Invalid, 1)
			}
		}, func(r any) {
			results[i].Err = fmt.Errorf("validation of %s panicked: %v", doc.Name, r)
			e.logger.ErrorContext(ctx, "batch check panicked", slog.String("document", doc.Name), slog.Any("panic", r))
		})
		if err != nil {
			for j := i; j < len(docs); j++ {
				results[j].Name = docs[j].Name
				results[j].Err = err
			}
			break
		}
	}

	pool.wait()
	return results, pool.snapshot()
}

// checkPool is a bounded goroutine pool with panic recovery.
type checkPool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	metrics BatchMetrics
}

func newCheckPool(size int) *checkPool {
	if size <= 0 {
		size = 1
	}
	return &checkPool{sem: make(chan struct{}, size)}
}

// submit blocks while the pool is at capacity and gives up when ctx ends.
func (p *checkPool) submit(ctx context.Context, fn func(), onPanic func(any)) error {
	if ctx.Err() != nil {
		return ErrBatchCanceled
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ErrBatchCanceled
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.metrics.Panics, 1)
				onPanic(r)
			}
			atomic.AddInt64(&p.metrics.Checked, 1)
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

func (p *checkPool) wait() {
	p.wg.Wait()
}

func (p *checkPool) snapshot() BatchMetrics {
	return BatchMetrics{
		Checked: atomic.LoadInt64(&p.metrics.Checked),
		Invalid: atomic.LoadInt64(&p.metrics.Invalid),
		Panics:  atomic.LoadInt64(&p.metrics.Panics),
	}
}
