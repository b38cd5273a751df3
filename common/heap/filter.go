// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package heap

import (
	"container/heap"

	"golang.org/x/exp/constraints"
)

// Elem is an element in a TopKFilter.
type Elem[T any, W constraints.Ordered] struct {
	Value  T
	Weight W
	// Seq is the push sequence number of the element.
	Seq int
}

// worse reports whether a ranks below b: lower weight first, and on equal
// weight the later push ranks below.
func worse[T any, W constraints.Ordered](a, b Elem[T, W]) bool {
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	return a.Seq > b.Seq
}

type _heap[T any, W constraints.Ordered] []Elem[T, W]

func (h _heap[T, W]) Len() int           { return len(h) }
func (h _heap[T, W]) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h _heap[T, W]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *_heap[T, W]) Push(x any) {
	*h = append(*h, x.(Elem[T, W]))
}

func (h *_heap[T, W]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopKFilter filters out top k items with maximum weights. Items with equal
// weights keep the order they were pushed in.
type TopKFilter[T any, W constraints.Ordered] struct {
	_heap[T, W]
	k   int
	seq int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[T any, W constraints.Ordered](k int) *TopKFilter[T, W] {
	return &TopKFilter[T, W]{k: k}
}

// Push pushes the element x onto the heap.
// The complexity is O(log k).
func (filter *TopKFilter[T, W]) Push(item T, weight W) {
	elem := Elem[T, W]{Value: item, Weight: weight, Seq: filter.seq}
	filter.seq++
	if filter.k <= 0 {
		return
	}
	if filter.Len() < filter.k {
		heap.Push(&filter._heap, elem)
	} else if worse(filter._heap[0], elem) {
		filter._heap[0] = elem
		heap.Fix(&filter._heap, 0)
	}
}

// PopAll pops all items in the filter with decreasing order.
func (filter *TopKFilter[T, W]) PopAll() []Elem[T, W] {
	elems := make([]Elem[T, W], filter.Len())
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i] = heap.Pop(&filter._heap).(Elem[T, W])
	}
	return elems
}
