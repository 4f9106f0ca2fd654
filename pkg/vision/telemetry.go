package vision

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Phase is one of the nine closed log phases of spec §4.9. Each phase is
// independently enabled/disabled; log lines for a disabled phase are
// never constructed, not merely suppressed after formatting.
type Phase int

const (
	PhaseCamera Phase = iota
	PhaseRender
	PhaseDetection
	PhaseBallLock
	PhaseShot
	PhasePose
	PhaseRSWindow
	PhaseAuthority
	PhaseDebug
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseCamera:
		return "camera"
	case PhaseRender:
		return "render"
	case PhaseDetection:
		return "detection"
	case PhaseBallLock:
		return "ball_lock"
	case PhaseShot:
		return "shot"
	case PhasePose:
		return "pose"
	case PhaseRSWindow:
		return "rs_window"
	case PhaseAuthority:
		return "authority"
	case PhaseDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// PhaseLogger is the phase-gated structured logger of spec §4.9/§6,
// backed by zerolog (the teacher's pack-sibling ManuGH-xg2g's dependency
// for structured logging). Unlike ManuGH's process-wide `log.Logger`
// singleton, this is an explicitly-constructed object the Pipeline owns,
// per spec §9's singleton re-architecture directive; the only ambient
// state it keeps is its own enabled-phase bitset.
type PhaseLogger struct {
	mu      sync.RWMutex
	enabled [phaseCount]bool
	logger  zerolog.Logger
}

// NewPhaseLogger creates a logger writing to w (os.Stdout if nil) with
// zerolog's ConsoleWriter, whose FormatMessage hook renders exactly
// "[<PHASE_UPPERCASE>] <message>" per spec §6's log-line format — the
// phase gate, not zerolog's own level, is the enable/disable mechanism.
// All phases start enabled.
func NewPhaseLogger(w io.Writer) *PhaseLogger {
	if w == nil {
		w = os.Stdout
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		PartsOrder: []string{"message"},
	}
	cw.FormatMessage = func(i interface{}) string {
		return fmt.Sprint(i)
	}
	pl := &PhaseLogger{logger: zerolog.New(cw)}
	for p := Phase(0); p < phaseCount; p++ {
		pl.enabled[p] = true
	}
	return pl
}

// SetEnabled toggles whether lines for phase are emitted.
func (l *PhaseLogger) SetEnabled(phase Phase, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if phase >= 0 && phase < phaseCount {
		l.enabled[phase] = enabled
	}
}

// Enabled reports whether phase currently emits log lines.
func (l *PhaseLogger) Enabled(phase Phase) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return phase >= 0 && phase < phaseCount && l.enabled[phase]
}

// Logf emits one structured line for phase, calling fn to build the
// message only if the phase is enabled — fn is never invoked for a
// disabled phase, preserving the "message is not constructed when
// disabled" contract of spec §4.9.
func (l *PhaseLogger) Logf(phase Phase, fn func() string) {
	if !l.Enabled(phase) {
		return
	}
	msg := fmt.Sprintf("[%s] %s", upper(phase.String()), fn())
	l.logger.Log().Msg(msg)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// TelemetryCode is a stable small integer documenting a specific
// observation site, per spec §4.9's examples (0x20 RS raw metrics, 0x54
// refuse flicker-aligned, 0x61/62/63 narrow/moderate/wide row-span).
type TelemetryCode uint16

const (
	CodeRSRawMetrics          TelemetryCode = 0x20
	CodeRefuseFlickerAligned  TelemetryCode = 0x54
	CodeRowSpanNarrow         TelemetryCode = 0x61
	CodeRowSpanModerate       TelemetryCode = 0x62
	CodeRowSpanWide           TelemetryCode = 0x63
)

// TelemetrySample is one entry in the telemetry ring buffer.
type TelemetrySample struct {
	TimestampSec float64
	Phase        Phase
	Code         TelemetryCode
	ValueA       float32
	ValueB       float32
}

// TelemetryRing is the fixed-capacity ring buffer of spec §4.9: an
// append-only store (by monotonic cursor) of recent observation samples,
// exported as CSV on demand. Capacity defaults to 8192 per spec.
type TelemetryRing struct {
	mu       sync.Mutex
	buf      []TelemetrySample
	cursor   int
	filled   bool
	paused   bool
}

// DefaultTelemetryCapacity is spec §4.9's design-default ring size.
const DefaultTelemetryCapacity = 8192

// NewTelemetryRing creates a ring of the given capacity (DefaultTelemetryCapacity if <= 0).
func NewTelemetryRing(capacity int) *TelemetryRing {
	if capacity <= 0 {
		capacity = DefaultTelemetryCapacity
	}
	return &TelemetryRing{buf: make([]TelemetrySample, capacity)}
}

// Push appends a sample, evicting the oldest once the ring is at
// capacity. A no-op while paused (spec §6's telemetry.pause command).
func (r *TelemetryRing) Push(s TelemetrySample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	r.buf[r.cursor] = s
	r.cursor = (r.cursor + 1) % len(r.buf)
	if r.cursor == 0 {
		r.filled = true
	}
}

// Pause stops accepting new samples until Resume is called.
func (r *TelemetryRing) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Resume re-enables Push.
func (r *TelemetryRing) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

// Paused reports whether the ring is currently refusing new samples.
func (r *TelemetryRing) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Snapshot returns all currently-stored samples in insertion order.
func (r *TelemetryRing) Snapshot() []TelemetrySample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]TelemetrySample, r.cursor)
		copy(out, r.buf[:r.cursor])
		return out
	}
	out := make([]TelemetrySample, len(r.buf))
	copy(out, r.buf[r.cursor:])
	copy(out[len(r.buf)-r.cursor:], r.buf[:r.cursor])
	return out
}

const telemetryCSVHeader = "timestamp,phase,code,valueA,valueB"

// Dump writes the ring's current contents to a CSV file named
// rs_telemetry_YYYYMMDD_HHMMSS.csv under dir, using stamp (the caller's
// clock reading) for the filename and header row fixed-format per spec
// §6, and returns the path written.
func (r *TelemetryRing) Dump(dir string, stamp time.Time) (string, error) {
	name := fmt.Sprintf("rs_telemetry_%s.csv", stamp.Format("20060102_150405"))
	path := name
	if dir != "" {
		path = dir + string(os.PathSeparator) + name
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating telemetry CSV: %w", err)
	}
	defer f.Close()

	if err := WriteTelemetryCSV(f, r.Snapshot()); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTelemetryCSV writes samples in the fixed row format
// "%.6f,<phase>,%u16,%.6f,%.6f" with the spec-fixed header, used both by
// Dump and directly by the CSV round-trip invariant test (spec §8 #10).
func WriteTelemetryCSV(w io.Writer, samples []TelemetrySample) error {
	if _, err := io.WriteString(w, telemetryCSVHeader+"\n"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.TimestampSec, 'f', 6, 64),
			s.Phase.String(),
			strconv.FormatUint(uint64(s.Code), 10),
			strconv.FormatFloat(float64(s.ValueA), 'f', 6, 32),
			strconv.FormatFloat(float64(s.ValueB), 'f', 6, 32),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTelemetryCSV parses rows previously written by WriteTelemetryCSV,
// used by the CSV round-trip invariant test. Unknown phase names parse
// as PhaseDebug (no round-trip loses a known phase, since WriteTelemetryCSV
// only ever emits the nine canonical names).
func ReadTelemetryCSV(r io.Reader) ([]TelemetrySample, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading telemetry CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	// First row is the header; skip it if present.
	start := 0
	if len(rows[0]) > 0 && rows[0][0] == "timestamp" {
		start = 1
	}
	out := make([]TelemetrySample, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if len(row) != 5 {
			return nil, fmt.Errorf("telemetry CSV row has %d fields, want 5", len(row))
		}
		ts, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		code, err := strconv.ParseUint(row[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parsing code: %w", err)
		}
		a, err := strconv.ParseFloat(row[3], 32)
		if err != nil {
			return nil, fmt.Errorf("parsing valueA: %w", err)
		}
		b, err := strconv.ParseFloat(row[4], 32)
		if err != nil {
			return nil, fmt.Errorf("parsing valueB: %w", err)
		}
		out = append(out, TelemetrySample{
			TimestampSec: ts,
			Phase:        phaseFromString(row[1]),
			Code:         TelemetryCode(code),
			ValueA:       float32(a),
			ValueB:       float32(b),
		})
	}
	return out, nil
}

func phaseFromString(s string) Phase {
	for p := Phase(0); p < phaseCount; p++ {
		if p.String() == s {
			return p
		}
	}
	return PhaseDebug
}
