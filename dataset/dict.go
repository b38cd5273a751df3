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

package dataset

// NotId represents an ID doesn't exist.
const NotId = int32(-1)

// Dict maps sparse user or item ids to dense indices. Dense indices are
// assigned in insertion order.
type Dict struct {
	si map[int64]int32
	is []int64
}

func NewDict() *Dict {
	return &Dict{si: make(map[int64]int32)}
}

// Count returns the number of ids in the dictionary.
func (d *Dict) Count() int32 {
	if d == nil {
		return 0
	}
	return int32(len(d.is))
}

// Add inserts an id if absent and returns its dense index.
func (d *Dict) Add(id int64) int32 {
	if index, ok := d.si[id]; ok {
		return index
	}
	index := int32(len(d.is))
	d.si[id] = index
	d.is = append(d.is, id)
	return index
}

// Index returns the dense index of an id, or NotId.
func (d *Dict) Index(id int64) int32 {
	if d == nil {
		return NotId
	}
	if index, ok := d.si[id]; ok {
		return index
	}
	return NotId
}

// Id converts a dense index back to the sparse id.
func (d *Dict) Id(index int32) (int64, bool) {
	if index < 0 || index >= d.Count() {
		return 0, false
	}
	return d.is[index], true
}
