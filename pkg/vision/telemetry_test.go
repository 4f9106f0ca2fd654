package vision

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseLoggerSkipsDisabledPhaseWithoutBuildingMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewPhaseLogger(&buf)
	l.SetEnabled(PhaseDebug, false)

	built := false
	l.Logf(PhaseDebug, func() string {
		built = true
		return "should not appear"
	})
	assert.False(t, built, "fn must not be invoked for a disabled phase")
	assert.Empty(t, buf.String())

	l.Logf(PhaseShot, func() string { return "shot finalized" })
	assert.Contains(t, buf.String(), "[SHOT] shot finalized")
}

func TestTelemetryRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewTelemetryRing(4)
	for i := 0; i < 6; i++ {
		r.Push(TelemetrySample{TimestampSec: float64(i), Phase: PhaseRSWindow, Code: CodeRSRawMetrics})
	}
	snap := r.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, 2.0, snap[0].TimestampSec)
	assert.Equal(t, 5.0, snap[3].TimestampSec)
}

func TestTelemetryRingPauseStopsPushes(t *testing.T) {
	r := NewTelemetryRing(8)
	r.Push(TelemetrySample{TimestampSec: 1})
	r.Pause()
	r.Push(TelemetrySample{TimestampSec: 2})
	assert.Len(t, r.Snapshot(), 1)
	r.Resume()
	r.Push(TelemetrySample{TimestampSec: 3})
	assert.Len(t, r.Snapshot(), 2)
}

func TestTelemetryCSVRoundTrip(t *testing.T) {
	samples := []TelemetrySample{
		{TimestampSec: 1.234567, Phase: PhaseRSWindow, Code: CodeRSRawMetrics, ValueA: 0.5, ValueB: -1.25},
		{TimestampSec: 2.000001, Phase: PhaseAuthority, Code: CodeRefuseFlickerAligned, ValueA: 1, ValueB: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTelemetryCSV(&buf, samples))

	lines := buf.String()
	assert.Contains(t, lines, telemetryCSVHeader)

	parsed, err := ReadTelemetryCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, samples, parsed)

	var buf2 bytes.Buffer
	require.NoError(t, WriteTelemetryCSV(&buf2, parsed))
	assert.Equal(t, buf.String(), buf2.String(), "read-then-re-emit must be byte-identical")
}

func TestTelemetryRingDumpWritesFile(t *testing.T) {
	dir := t.TempDir()
	r := NewTelemetryRing(8)
	r.Push(TelemetrySample{TimestampSec: 1, Phase: PhaseShot, Code: CodeRSRawMetrics, ValueA: 1, ValueB: 2})

	path, err := r.Dump(dir, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, path, "rs_telemetry_20260731_120000.csv")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), telemetryCSVHeader)
}
