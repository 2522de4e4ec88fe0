// Package registry provides the concurrent lookup table the aggregator uses
// to route incoming responses to the pending group that owns their
// request_id.
package registry

import "github.com/alphadose/haxmap"

type Registry[T any] interface {
	Get(key string) (T, bool)
	Add(key string, value T)
	// AddAll registers the same value under every key.
	AddAll(keys []string, value T)
	Del(key string)
	DelAll(keys []string)
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(key string) (T, bool) {
	return r.values.Get(key)
}

func (r *registry[T]) Add(key string, value T) {
	r.values.Set(key, value)
}

func (r *registry[T]) AddAll(keys []string, value T) {
	for _, key := range keys {
		r.values.Set(key, value)
	}
}

func (r *registry[T]) Del(key string) {
	r.values.Del(key)
}

func (r *registry[T]) DelAll(keys []string) {
	for _, key := range keys {
		r.values.Del(key)
	}
}
