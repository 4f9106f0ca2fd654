package vision

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTelemetryControlHandlerPauseAndDump(t *testing.T) {
	ring := NewTelemetryRing(8)
	ring.Push(TelemetrySample{TimestampSec: 1})

	dir := t.TempDir()
	h, err := NewTelemetryControlHandler("127.0.0.1:0", ring, dir)
	require.NoError(t, err)
	h.DumpClock = func() time.Time { return time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC) }
	h.Start()
	defer h.Close()

	clientAddr := h.conn.LocalAddr().(*net.UDPAddr)
	conn, err := net.DialUDP("udp", nil, clientAddr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("telemetry.pause"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ring.Paused() }, time.Second, 5*time.Millisecond)

	ring.Push(TelemetrySample{TimestampSec: 2})
	require.Len(t, ring.Snapshot(), 1, "push while paused must be a no-op")

	_, err = conn.Write([]byte("telemetry.dump"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		entries, statErr := os.ReadDir(dir)
		return statErr == nil && len(entries) > 0
	}, time.Second, 5*time.Millisecond)
}
