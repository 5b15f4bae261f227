// Package pool provides a typed wrapper around sync.Pool with added metrics.
package pool

import (
	"sync"

	"github.com/linchenxuan/kvutil/metrics"
)

// Pool is a wrapper around sync.Pool that collects metrics on object
// creation and returns typed values.
type Pool[T any] struct {
	Name string // Name is the name of the pool, used as a dimension in metrics.
	pool sync.Pool
}

// NewPool creates a new instrumented pool.
// The 'name' is used for metrics reporting.
// The 'newFunc' is the function called to create a new item when the pool is empty.
func NewPool[T any](name string, newFunc func() T) *Pool[T] {
	p := &Pool[T]{Name: name}
	p.pool.New = func() any {
		// Increment a counter every time a new object is created because the pool was empty.
		metrics.IncrCounterWithDimGroup(metrics.NamePoolCreateTotal, metrics.GroupKVUtil, 1, metrics.Dimension{
			metrics.DimPoolName: name,
		})
		return newFunc()
	}
	return p
}

// Put adds x back to the pool for reuse.
func (p *Pool[T]) Put(x T) {
	p.pool.Put(x)
}

// Get retrieves an item from the pool.
// If the pool is empty, a new item is created using the 'newFunc' provided to NewPool.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}
