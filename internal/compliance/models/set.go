package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Set is an unordered collection of unique keys. The zero value is an empty,
// read-only set; use NewSet or Add on a non-nil set to insert.
type Set[K comparable] map[K]struct{}

// NewSet builds a set from the given keys, dropping duplicates.
func NewSet[K comparable](keys ...K) Set[K] {
	s := make(Set[K], len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set[K]) Add(keys ...K) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s Set[K]) Remove(k K) {
	delete(s, k)
}

func (s Set[K]) Has(k K) bool {
	_, ok := s[k]
	return ok
}

func (s Set[K]) Len() int {
	return len(s)
}

// Union returns a new set holding the keys of s and every other set.
func (s Set[K]) Union(others ...Set[K]) Set[K] {
	out := make(Set[K], len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	for _, o := range others {
		for k := range o {
			out[k] = struct{}{}
		}
	}
	return out
}

// Difference returns the keys of s that are absent from other.
func (s Set[K]) Difference(other Set[K]) Set[K] {
	out := make(Set[K])
	for k := range s {
		if !other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

func (s Set[K]) Equal(other Set[K]) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Clone copies s; a nil set clones to an empty one.
func (s Set[K]) Clone() Set[K] {
	return s.Union()
}

// Slice returns the keys ordered by their string form so output is stable.
func (s Set[K]) Slice() []K {
	out := make([]K, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b K) int {
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	})
	return out
}

func (s Set[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *Set[K]) UnmarshalJSON(b []byte) error {
	var keys []K
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	*s = NewSet(keys...)
	return nil
}
