// Package cursor walks keyset-paginated stores page by page.
//
// Rows are requested with an exclusive lower bound ("after") on a numeric
// id. Iteration ends when a page comes back shorter than the page size, when
// the last row of a page has no usable id, or when that id does not move past
// the previous bound.
package cursor

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"slices"
	"sync/atomic"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// DefaultPageSize is used when a caller has no configured page size.
const DefaultPageSize = 1000

// ErrConsumed is yielded when an Iterate sequence is ranged over a second time.
var ErrConsumed = errors.New("cursor: sequence already consumed")

// Fetcher returns up to limit rows whose id is strictly greater than after,
// ordered by id ascending. A nil after requests the first page.
type Fetcher[T any] func(ctx context.Context, after *int64, limit int) ([]T, error)

// Pager describes one paginated read.
type Pager[T any] struct {
	Fetch Fetcher[T]
	// Cursor extracts the row id used as the next page's lower bound.
	// It returns false when the row carries no usable id.
	Cursor   func(T) (int64, bool)
	PageSize int
}

func (p Pager[T]) validate() error {
	if p.Fetch == nil {
		return apperrors.Validation("cursor: fetch function is required")
	}
	if p.Cursor == nil {
		return apperrors.Validation("cursor: cursor function is required")
	}
	if p.PageSize < 1 {
		return apperrors.ValidationField("page_size", "page size must be at least 1")
	}
	return nil
}

// Iterate returns a lazy, single-use sequence over every row the pager can
// reach. Pages are fetched only as the consumer advances. An error is
// yielded once with a zero row and ends the sequence.
func Iterate[T any](ctx context.Context, p Pager[T]) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if used.Swap(true) {
			yield(zero, ErrConsumed)
			return
		}
		if err := p.validate(); err != nil {
			yield(zero, err)
			return
		}

		var after *int64
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			page, err := p.Fetch(ctx, after, p.PageSize)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}
			if len(page) < p.PageSize {
				return
			}
			next, ok := p.Cursor(page[len(page)-1])
			if !ok {
				return
			}
			if after != nil && next <= *after {
				return
			}
			after = &next
		}
	}
}

// FetchAll drains the pager and returns every row. When less is non-nil the
// result is sorted stably with it, so rows comparing equal keep store order.
func FetchAll[T any](ctx context.Context, p Pager[T], less func(a, b T) int) ([]T, error) {
	var out []T
	for row, err := range Iterate(ctx, p) {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if less != nil {
		slices.SortStableFunc(out, less)
	}
	return out, nil
}

// ByID builds a comparison on the row id for FetchAll. Rows without an id
// sort last.
func ByID[T any](id func(T) (int64, bool)) func(a, b T) int {
	return func(a, b T) int {
		ai, aok := id(a)
		bi, bok := id(b)
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	}
}
