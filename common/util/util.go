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

package util

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/gorse-io/gorse-movies/common/log"
)

// ParseFloat parses a float of type T from a table cell. Surrounding
// blanks are ignored.
func ParseFloat[T constraints.Float](s string) (T, error) {
	var zero T
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return zero, errors.Trace(err)
	}
	return T(v), nil
}

// ParseInt parses a signed integer of type T from a table cell.
func ParseInt[T constraints.Signed](s string) (T, error) {
	var zero T
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return zero, errors.Trace(err)
	}
	return T(v), nil
}

// RangeInt returns [0, 1, ..., n-1].
func RangeInt(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = i
	}
	return a
}

// CheckPanic catches a panic in a goroutine and logs it.
func CheckPanic() {
	if r := recover(); r != nil {
		log.Logger().Error("panic recovered", zap.Any("panic", r))
	}
}
