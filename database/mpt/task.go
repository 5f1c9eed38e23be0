// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mpt

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// This file provides a small task execution framework for subtree flushes,
// not intended for use outside this package. Tasks form a tree: each task may
// depend on multiple child tasks but has at most one parent depending on it.
// These properties are not verified.
//
// The intended usage is to
//  1) create a set of tasks, closed under dependencies, topologically sorted
//     so that no task appears before any of its dependencies
//  2) call runTasks with the set of tasks
//
// Tasks run in parallel, respecting dependencies. The first error stops the
// work; the remaining tasks are drained without running their actions.

// task is one unit of work, holding the action, the number of not yet
// fulfilled dependencies, and the optional parent to notify on completion.
type task struct {
	action          func() error
	numDependencies atomic.Int32
	parentTask      *task
}

func newTask(action func() error, numDependencies int) *task {
	t := &task{action: action}
	t.numDependencies.Store(int32(numDependencies))
	return t
}

// run executes the task's action and returns the parent task if it became
// ready as a result.
func (t *task) run(failed *atomic.Bool) (*task, error) {
	var err error
	if !failed.Load() {
		if err = t.action(); err != nil {
			failed.Store(true)
		}
	}
	if t.parentTask == nil {
		return nil, err
	}
	if t.parentTask.numDependencies.Add(-1) != 0 {
		return nil, err
	}
	return t.parentTask, err
}

// runTasks executes the given tasks in parallel, respecting their
// dependencies. The list must contain every task needed to satisfy the
// dependencies; missing ones leave the graph undrained.
func runTasks(tasks []*task) error {
	// Not worth the parallelism overhead for small flushes.
	if len(tasks) < 20 {
		for _, t := range tasks {
			if err := t.action(); err != nil {
				return err
			}
		}
		return nil
	}

	// Seed the work list with all tasks ready to run. Tasks becoming ready
	// later are reached by chaining from their last completed dependency, so
	// the list never grows.
	workList := make([]*task, 0, len(tasks))
	for _, t := range tasks {
		if t.numDependencies.Load() == 0 {
			workList = append(workList, t)
		}
	}

	var failed atomic.Bool
	var pos atomic.Int32
	processTasks := func() error {
		var firstErr error
		for {
			next := pos.Add(1) - 1
			if int(next) >= len(workList) {
				return firstErr
			}
			// Run this task and every task becoming ready as a result.
			t := workList[next]
			for t != nil {
				var err error
				t, err = t.run(&failed)
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	const numWorkers = 7 // + this goroutine
	var group errgroup.Group
	for i := 0; i < numWorkers; i++ {
		group.Go(processTasks)
	}
	// This goroutine helps with the work as well; all chains are complete
	// once every worker has drained the list.
	err := processTasks()
	if groupErr := group.Wait(); err == nil {
		err = groupErr
	}
	return err
}
