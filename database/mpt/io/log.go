// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package io

import (
	"time"

	"github.com/0xsoniclabs/triedb/common/logger"
	"github.com/rs/zerolog"
)

// Log produces progress output for long-running import and export
// operations. All messages are prefixed with the time elapsed since the
// log was created.
type Log struct {
	logger zerolog.Logger
	start  time.Time
}

// NewLog creates a log reporting through the process-wide logger.
func NewLog() *Log {
	return &Log{
		logger: logger.Logger(),
		start:  time.Now(),
	}
}

// Printf logs a single message at info level.
func (l *Log) Printf(format string, args ...any) {
	elapsed := time.Since(l.start).Round(time.Second)
	l.logger.Info().Msgf("[t=%v] "+format, append([]any{elapsed}, args...)...)
}

// NewProgressTracker creates a tracker logging the number of processed
// items and the current processing rate every step items. The format
// string needs to accept an item count and a float rate, in this order.
func (l *Log) NewProgressTracker(format string, step int) *ProgressLogger {
	return &ProgressLogger{
		log:    l,
		format: format,
		step:   step,
		start:  time.Now(),
	}
}

// ProgressLogger reports progress on operations processing a large number
// of uniform items.
type ProgressLogger struct {
	log      *Log
	format   string
	step     int
	counter  int
	reported int
	start    time.Time
}

// Step registers n completed items and logs a progress message whenever
// another full step of items has been completed since the last report.
func (p *ProgressLogger) Step(n int) {
	p.counter += n
	if p.counter-p.reported < p.step {
		return
	}
	p.reported = p.counter
	rate := float64(p.counter) / time.Since(p.start).Seconds()
	p.log.Printf(p.format, p.counter, rate)
}
