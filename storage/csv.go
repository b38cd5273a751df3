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

package storage

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/dataset"
)

// CSVDatabase reads movies or ratings from a local csv file with a header
// row. Columns are located by the names in Schema.
type CSVDatabase struct {
	path    string
	options Options
}

func (d *CSVDatabase) Init() error {
	return nil
}

func (d *CSVDatabase) Close() error {
	return nil
}

// LoadItems reads items in file order.
func (d *CSVDatabase) LoadItems(ctx context.Context) ([]dataset.Item, error) {
	items := make([]dataset.Item, 0)
	err := d.readRecords(ctx, []string{d.options.Schema.ItemId, d.options.Schema.Title}, func(fields []string) error {
		itemId, err := util.ParseInt[int64](fields[0])
		if err != nil {
			return errors.Annotatef(err, "invalid %s", d.options.Schema.ItemId)
		}
		items = append(items, dataset.Item{Id: itemId, Title: fields[1]})
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// LoadRatings reads ratings in file order.
func (d *CSVDatabase) LoadRatings(ctx context.Context) ([]dataset.Rating, error) {
	schema := d.options.Schema
	ratings := make([]dataset.Rating, 0)
	err := d.readRecords(ctx, []string{schema.UserId, schema.ItemId, schema.Rating}, func(fields []string) error {
		userId, err := util.ParseInt[int64](fields[0])
		if err != nil {
			return errors.Annotatef(err, "invalid %s", schema.UserId)
		}
		itemId, err := util.ParseInt[int64](fields[1])
		if err != nil {
			return errors.Annotatef(err, "invalid %s", schema.ItemId)
		}
		rating, err := util.ParseFloat[float32](fields[2])
		if err != nil {
			return errors.Annotatef(err, "invalid %s", schema.Rating)
		}
		ratings = append(ratings, dataset.Rating{UserId: userId, ItemId: itemId, Rating: rating})
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

func (d *CSVDatabase) BatchInsertItems(context.Context, []dataset.Item) error {
	return errors.NotSupportedf("insert into csv file %s", d.path)
}

func (d *CSVDatabase) BatchInsertRatings(context.Context, []dataset.Rating) error {
	return errors.NotSupportedf("insert into csv file %s", d.path)
}

// readRecords passes the named columns of every data row to handler.
func (d *CSVDatabase) readRecords(ctx context.Context, columns []string, handler func([]string) error) error {
	file, err := os.Open(d.path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	var reader io.Reader = file
	if d.options.Progress {
		if stat, err := file.Stat(); err == nil {
			pbReader := progressbar.NewReader(file, progressbar.DefaultBytes(stat.Size(), "Loading "+filepath.Base(d.path)))
			defer pbReader.Close()
			reader = &pbReader
		}
	}
	sc := bufio.NewScanner(reader)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	positions := make([]int, len(columns))
	record := make([]string, len(columns))
	var (
		handlerErr error
		headerSeen bool
	)
	err = ReadLines(sc, d.options.Separator, func(lineNumber int, fields []string) bool {
		if lineNumber == 0 {
			headerSeen = true
			// locate columns by header
			for i, column := range columns {
				positions[i] = -1
				for j, name := range fields {
					if strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")) == column {
						positions[i] = j
						break
					}
				}
				if positions[i] < 0 {
					handlerErr = errors.NotFoundf("column %s in %s", column, d.path)
					return false
				}
			}
			return true
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			// skip blank line
			return true
		}
		if lineNumber%1024 == 0 {
			if handlerErr = ctx.Err(); handlerErr != nil {
				return false
			}
		}
		for i, position := range positions {
			if position >= len(fields) {
				handlerErr = errors.NotValidf("line %d of %s has %d fields", lineNumber+1, d.path, len(fields))
				return false
			}
			record[i] = strings.TrimSpace(fields[position])
		}
		if handlerErr = handler(record); handlerErr != nil {
			handlerErr = errors.Annotatef(handlerErr, "line %d of %s", lineNumber+1, d.path)
			return false
		}
		return true
	})
	if err != nil {
		return errors.Trace(err)
	}
	if handlerErr != nil {
		return handlerErr
	}
	if !headerSeen {
		return errors.NotValidf("csv file %s without header", d.path)
	}
	return nil
}

// ReadLines parse fields of each line for csv file. Quoted fields may contain
// the separator, escaped quotes and line breaks.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		// read line
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if string(line[i]) == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	if quoted {
		return errors.NotValidf("unterminated quoted field")
	}
	return sc.Err()
}
