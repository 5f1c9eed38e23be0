// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogger_OutputCanBeRedirected(t *testing.T) {
	require := require.New(t)

	var buffer bytes.Buffer
	SetOutput(&buffer)
	defer resetLogger()

	log := Logger()
	log.Info().Msg("redirected message")
	require.Contains(buffer.String(), "redirected message")
}

func resetLogger() {
	mu.Lock()
	defer mu.Unlock()
	logger = newDefault()
}

func TestLogger_LevelsBelowTheMinimumAreDropped(t *testing.T) {
	require := require.New(t)

	var buffer bytes.Buffer
	SetOutput(&buffer)
	SetLevel(zerolog.WarnLevel)
	defer resetLogger()

	log := Logger()
	log.Info().Msg("too quiet")
	log.Warn().Msg("loud enough")
	require.NotContains(buffer.String(), "too quiet")
	require.Contains(buffer.String(), "loud enough")
}
