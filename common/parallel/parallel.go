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

package parallel

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/gorse-io/gorse-movies/common/util"
)

const chanSize = 1024

// Parallel runs nJobs jobs on nWorkers workers. worker receives the id of the
// worker and the id of the job. The first failed job aborts the remaining ones
// and its error is returned. Cancelling ctx stops scheduling new jobs.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := make(chan int, chanSize)
	// producer
	go func() {
		defer close(c)
		for i := 0; i < nJobs; i++ {
			select {
			case <-ctx.Done():
				return
			case c <- i:
			}
		}
	}()
	// consumer
	var wg sync.WaitGroup
	errs := make([]error, nWorkers)
	for j := 0; j < nWorkers; j++ {
		workerId := j
		wg.Go(func() {
			defer util.CheckPanic()
			for jobId := range c {
				if ctx.Err() != nil {
					// nil unless the caller cancelled
					errs[workerId] = parent.Err()
					return
				}
				if err := worker(workerId, jobId); err != nil {
					errs[workerId] = err
					cancel()
					return
				}
			}
		})
	}
	wg.Wait()
	if err := parent.Err(); err != nil {
		return errors.Trace(err)
	}
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Split divides n items into nWorkers contiguous chunks and runs worker on
// each [begin, end) range. chunkId is stable for a given n and nWorkers.
func Split(ctx context.Context, n, nWorkers int, worker func(chunkId, begin, end int) error) error {
	if nWorkers < 1 {
		nWorkers = 1
	}
	if nWorkers > n {
		nWorkers = max(n, 1)
	}
	chunk := (n + nWorkers - 1) / nWorkers
	return Parallel(ctx, nWorkers, nWorkers, func(_, jobId int) error {
		begin := jobId * chunk
		end := min(begin+chunk, n)
		if begin >= end {
			return nil
		}
		return worker(jobId, begin, end)
	})
}
