package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradu/emailqc/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	finished := now.Add(2 * time.Minute)
	runs := []model.QcRun{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Name:        "March CFD promo",
			Silo:        "CFD",
			Entity:      "UK",
			EmailType:   "marketing",
			Status:      model.RunStageCompleted,
			SummaryPass: boolPtr(true),
			StartedAt:   now,
			FinishedAt:  &finished,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Name:      "Welcome series step 2",
			Silo:      "FX",
			Entity:    "EU",
			EmailType: "transactional",
			Status:    model.RunStageRunningModel,
			StartedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SILO")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "March CFD promo")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "pass")
	assert.Contains(t, output, "Welcome series step 2")
	assert.Contains(t, output, "running_model")
	assert.Contains(t, output, "2026-03-15 10:30")
	assert.Contains(t, output, "abc12345")
}

func TestRunsStats(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	twoMin := now.Add(2 * time.Minute)
	threeMin := now.Add(3 * time.Minute)

	runs := []model.QcRun{
		{
			ID:          "1",
			Status:      model.RunStageCompleted,
			SummaryPass: boolPtr(true),
			StartedAt:   now,
			FinishedAt:  &twoMin,
		},
		{
			ID:          "2",
			Status:      model.RunStageCompleted,
			SummaryPass: boolPtr(false),
			StartedAt:   now,
			FinishedAt:  &threeMin,
		},
		{
			ID:        "3",
			Status:    model.RunStageFailed,
			StartedAt: now.Add(10 * time.Minute),
		},
		{
			ID:        "4",
			Status:    model.RunStageCheckingLinks,
			StartedAt: now.Add(15 * time.Minute),
		},
	}

	stats := computeRunStats(runs)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.InFlight)
	// Average duration of the 2 completed runs: (120s + 180s) / 2 = 150s.
	assert.InDelta(t, 150.0, stats.AvgDurSecs, 0.1)

	var buf bytes.Buffer
	formatRunStats(&buf, stats)

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Completed:")
	assert.Contains(t, output, "Passed:")
	assert.Contains(t, output, "Flagged:")
	assert.Contains(t, output, "In flight:")
	assert.Contains(t, output, "150.0s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
