package firemock

import (
	"iter"

	"google.golang.org/api/iterator"
)

// Iterator walks a fully materialized result list. Next returns
// iterator.Done once the results are exhausted, matching the real client's
// iterators, so loops written against it work unchanged.
type Iterator[T any] struct {
	items []T
	pos   int
	err   error
}

type (
	DocumentIterator    = Iterator[*DocumentSnapshot]
	DocumentRefIterator = Iterator[*DocumentRef]
	CollectionIterator  = Iterator[*CollectionRef]
)

func (it *Iterator[T]) Next() (T, error) {
	var zero T
	if it.err != nil {
		return zero, it.err
	}
	if it.pos >= len(it.items) {
		return zero, iterator.Done
	}
	v := it.items[it.pos]
	it.pos++
	return v, nil
}

// GetAll returns the remaining items and exhausts the iterator.
func (it *Iterator[T]) GetAll() ([]T, error) {
	if it.err != nil {
		return nil, it.err
	}
	rest := it.items[it.pos:]
	it.pos = len(it.items)
	return rest, nil
}

// Stop releases the results; Next returns iterator.Done afterwards.
func (it *Iterator[T]) Stop() {
	it.items = nil
	it.pos = 0
}

// All ranges over the remaining items. Iteration stops after the first error.
func (it *Iterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := it.Next()
			if err == iterator.Done {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}
