// Package paginate turns cursor-based list calls into lazy page sequences.
package paginate

import (
	"context"
	"iter"
)

// Page is one response of a cursor-paginated list call.
type Page[T any] struct {
	Items []T
	// NextCursor is the opaque continuation token. Empty on the final page.
	NextCursor string
}

// FetchFunc requests the page identified by cursor. The first page is
// requested with an empty cursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Pages returns a pull-based sequence of pages. A page is only requested when
// the consumer asks for it, so breaking out of the range loop stops further
// requests. A fetch error is yielded once and ends the sequence.
func Pages[T any](ctx context.Context, fetch FetchFunc[T]) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{}, err)
				return
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				yield(Page[T]{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// Items flattens a page sequence into its items, preserving page order.
func Items[T any](pages iter.Seq2[Page[T], error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range pages {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect drains every page and returns all items in order.
func Collect[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var all []T
	for item, err := range Items(Pages(ctx, fetch)) {
		if err != nil {
			return nil, err
		}
		all = append(all, item)
	}
	return all, nil
}
