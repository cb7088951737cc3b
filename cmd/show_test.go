package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow_RequiresInit(t *testing.T) {
	inTempDir(t)
	assert.ErrorIs(t, RunShow(io.Discard, ""), errNotInitialized)
}

func TestShow_LatestFeature(t *testing.T) {
	inTempDir(t)
	runInit(t)
	seedRun(t, "run-a", seeded)
	require.NoError(t, RunScenarios(context.Background(), io.Discard, testEnv(nil), "", "run-a"))

	var buf bytes.Buffer
	require.NoError(t, RunShow(&buf, ""))
	out := buf.String()
	assert.Contains(t, out, "run run-a")
	assert.Contains(t, out, "feature_file.feature")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "Feature: Application Functionality")
	assert.Contains(t, out, "  Scenario: Valid Login")
	assert.Contains(t, out, "    When Open app")
	assert.Contains(t, out, "    And Log in")
	assert.Contains(t, out, "    Then Dashboard")
}

func TestShow_RunWithoutFeature(t *testing.T) {
	inTempDir(t)
	runInit(t)
	seedRun(t, "run-a", seeded)

	err := RunShow(io.Discard, "run-a")
	assert.ErrorContains(t, err, "no feature rendered for run run-a")
}
