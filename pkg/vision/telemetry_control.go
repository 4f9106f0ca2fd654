package vision

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// TelemetryControlHandler is the receiver side of spec §6's telemetry
// control surface: a minimal UDP line-protocol that accepts the two
// named commands `telemetry.pause` and `telemetry.dump`. The teacher's
// VMCSender (pkg/miface/sender.go) talks point-to-point UDP to a
// companion process for output; this is the same net.UDPConn/mutex/
// enable-flag idiom run in reverse, as a receiver rather than a sender.
type TelemetryControlHandler struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	ring    *TelemetryRing
	dumpDir string
	running bool
	wg      sync.WaitGroup

	// DumpClock lets tests and callers supply a deterministic clock for
	// filename stamping; defaults to time.Now.
	DumpClock func() time.Time
}

// NewTelemetryControlHandler creates a handler bound to addr (e.g.
// "127.0.0.1:39539") that pauses/dumps ring.
func NewTelemetryControlHandler(addr string, ring *TelemetryRing, dumpDir string) (*TelemetryControlHandler, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving telemetry control address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("binding telemetry control socket: %w", err)
	}
	return &TelemetryControlHandler{conn: conn, ring: ring, dumpDir: dumpDir, DumpClock: time.Now}, nil
}

// Start launches the receive loop in a background goroutine.
func (h *TelemetryControlHandler) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	h.wg.Add(1)
	go h.run()
}

func (h *TelemetryControlHandler) run() {
	defer h.wg.Done()
	buf := make([]byte, 256)
	for {
		n, _, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			return // closed socket ends the loop.
		}
		h.handleLine(string(buf[:n]))
	}
}

func (h *TelemetryControlHandler) handleLine(line string) {
	for _, cmd := range strings.Split(line, "\n") {
		switch strings.TrimSpace(cmd) {
		case "telemetry.pause":
			h.ring.Pause()
		case "telemetry.dump":
			clock := h.DumpClock
			if clock == nil {
				clock = time.Now
			}
			_, _ = h.ring.Dump(h.dumpDir, clock())
		case "telemetry.resume":
			// Not a named command in spec §6, but the inverse of pause is
			// needed for the control surface to be useful; accepted as an
			// unlisted convenience, never required by any invariant.
			h.ring.Resume()
		}
	}
}

// Close stops the receive loop and releases the socket.
func (h *TelemetryControlHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.running = false
	err := h.conn.Close()
	h.wg.Wait()
	return err
}
