// Package batch runs a set of independent chain reads as one
// all-or-nothing snapshot.
package batch

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"
)

// Read is one zero-argument read of a snapshot.
type Read func(ctx context.Context) (any, error)

// ReadError reports the read that broke a snapshot. When several reads
// fail, Index is the lowest failing position.
type ReadError struct {
	Index int
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("batch read %d: %v", e.Index, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Executor issues reads concurrently, at most limit at a time.
type Executor struct {
	limit int
}

// New returns an Executor. limit <= 0 runs every read at once.
func New(limit int) *Executor {
	return &Executor{limit: limit}
}

// Execute runs all reads and returns their values in input order. Any
// failure discards the whole result set. The other reads are still
// awaited so that no goroutine outlives the call.
func (x *Executor) Execute(ctx context.Context, reads ...Read) ([]any, error) {
	if len(reads) == 0 {
		return []any{}, nil
	}

	results := make([]any, len(reads))
	errs := make([]error, len(reads))

	var g errgroup.Group
	if x != nil && x.limit > 0 {
		g.SetLimit(x.limit)
	}
	for i, rd := range reads {
		g.Go(func() error {
			results[i], errs[i] = run(ctx, rd)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &ReadError{Index: i, Err: err}
		}
	}
	return results, nil
}

func run(ctx context.Context, rd Read) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if rd == nil {
		return nil, fmt.Errorf("nil read")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rd(ctx)
}

// BigInt returns results[i] as *big.Int.
func BigInt(results []any, i int) (*big.Int, error) {
	v, err := at(results, i)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return nil, fmt.Errorf("batch result %d: want *big.Int, got %T", i, v)
	}
	return b, nil
}

// Uint64 returns results[i] as uint64.
func Uint64(results []any, i int) (uint64, error) {
	v, err := at(results, i)
	if err != nil {
		return 0, err
	}
	n, ok := v.(uint64)
	if !ok {
		return 0, fmt.Errorf("batch result %d: want uint64, got %T", i, v)
	}
	return n, nil
}

// Bool returns results[i] as bool.
func Bool(results []any, i int) (bool, error) {
	v, err := at(results, i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("batch result %d: want bool, got %T", i, v)
	}
	return b, nil
}

func at(results []any, i int) (any, error) {
	if i < 0 || i >= len(results) {
		return nil, fmt.Errorf("batch result %d: out of range (%d results)", i, len(results))
	}
	return results[i], nil
}

// As returns results[i] as T.
func As[T any](results []any, i int) (T, error) {
	var zero T
	v, err := at(results, i)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("batch result %d: want %T, got %T", i, zero, v)
	}
	return t, nil
}
