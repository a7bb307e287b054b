// Package grouping partitions a period's records into per-recipient packages.
package grouping

import (
	"github.com/MarcinPiech/DHLAI/core/model"
)

// Groups maps a recipient name to its records and keeps first-seen order.
type Groups[T any] struct {
	order []string
	items map[string][]T
}

func newGroups[T any]() *Groups[T] {
	return &Groups[T]{items: make(map[string][]T)}
}

func (g *Groups[T]) add(key string, item T) {
	if _, ok := g.items[key]; !ok {
		g.order = append(g.order, key)
	}
	g.items[key] = append(g.items[key], item)
}

// Names returns the recipients in the order they were first seen.
func (g *Groups[T]) Names() []string { return append([]string(nil), g.order...) }

// Get returns the items grouped under name.
func (g *Groups[T]) Get(name string) []T { return g.items[name] }

// Len returns the number of groups.
func (g *Groups[T]) Len() int { return len(g.order) }

// Map returns a copy of the grouping as a plain map.
func (g *Groups[T]) Map() map[string][]T {
	out := make(map[string][]T, len(g.items))
	for k, v := range g.items {
		out[k] = append([]T(nil), v...)
	}
	return out
}

// GroupByField appends each record to the group of every non-empty value it
// holds in fields. A record naming the same person in two of the given
// fields is added to that person's group once.
func GroupByField(records []model.LocationRecord, fields ...model.Field) *Groups[model.LocationRecord] {
	g := newGroups[model.LocationRecord]()
	for i := range records {
		rec := &records[i]
		var seen []string
		for _, f := range fields {
			name := rec.Get(f)
			if name == "" || contains(seen, name) {
				continue
			}
			seen = append(seen, name)
			g.add(name, *rec)
		}
	}
	return g
}

// GroupBy groups items by a single key; empty keys are dropped.
func GroupBy[T any](items []T, key func(T) string) *Groups[T] {
	g := newGroups[T]()
	for _, it := range items {
		if k := key(it); k != "" {
			g.add(k, it)
		}
	}
	return g
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
