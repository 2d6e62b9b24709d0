// Package trace writes the processor's append-only JSONL execution trail.
// Each event carries the SHA-256 of the previous line so a trace file can be
// checked for truncation or tampering with Verify.
package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// EventType enumerates the trace event types.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventRunComplete     EventType = "run_complete"
	EventCommandStart    EventType = "command_start"
	EventCommandComplete EventType = "command_complete"
	EventLoopIteration   EventType = "loop_iteration"
	EventBlockSkipped    EventType = "block_skipped"
)

// genesis is the prev_hash of the first event in a stream.
var genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream. It is safe for
// concurrent use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	runID    string
	prevHash string
	redactor Redactor
	now      func() time.Time
}

// Redactor masks sensitive text before it is written.
type Redactor interface {
	Redact(s string) string
}

// NewWriter creates a trace writer that writes to w.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{w: w, runID: runID, prevHash: genesis, now: time.Now}
}

// NewFileWriter creates a trace writer that truncates and writes path.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// SetRunID changes the run id stamped on subsequent events.
func (tw *Writer) SetRunID(runID string) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.runID = runID
}

// SetRedactor masks property values, command parameters, messages and loop
// items written by the Emit helpers. Events passed straight to Emit are
// written as given.
func (tw *Writer) SetRedactor(r Redactor) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.redactor = r
}

func (tw *Writer) redact(s string) string {
	tw.mu.Lock()
	r := tw.redactor
	tw.mu.Unlock()
	if r == nil {
		return s
	}
	return r.Redact(s)
}

// Close closes the underlying file when the writer owns one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		RunID:     tw.runID,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(evt); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	line := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])
	_, err := tw.w.Write(buf.Bytes())
	return err
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(source string, commands int, properties map[string]any) error {
	data := map[string]any{
		"source":   source,
		"commands": commands,
	}
	if len(properties) > 0 {
		masked := make(map[string]any, len(properties))
		for k, v := range properties {
			if str, ok := v.(string); ok {
				v = tw.redact(str)
			}
			masked[k] = v
		}
		data["properties"] = masked
	}
	return tw.Emit(EventRunStart, data)
}

// EmitCommandStart emits a command_start event. line is 1-based.
func (tw *Writer) EmitCommandStart(line int, name string, params map[string]string) error {
	data := map[string]any{
		"line":    line,
		"command": name,
	}
	if len(params) > 0 {
		masked := make(map[string]string, len(params))
		for k, v := range params {
			masked[k] = tw.redact(v)
		}
		data["params"] = masked
	}
	return tw.Emit(EventCommandStart, data)
}

// EmitCommandComplete emits a command_complete event.
func (tw *Writer) EmitCommandComplete(line int, name, severity string, duration time.Duration, message string) error {
	data := map[string]any{
		"line":     line,
		"command":  name,
		"severity": severity,
		"duration": duration.String(),
	}
	if message != "" {
		data["message"] = tw.redact(message)
	}
	return tw.Emit(EventCommandComplete, data)
}

// EmitLoopIteration emits a loop_iteration event. index is 1-based.
func (tw *Writer) EmitLoopIteration(loop, iterator string, index int, item any) error {
	return tw.Emit(EventLoopIteration, map[string]any{
		"loop":     loop,
		"iterator": iterator,
		"index":    index,
		"item":     tw.redact(fmt.Sprint(item)),
	})
}

// EmitBlockSkipped emits a block_skipped event for an If whose condition was
// false, or a block that could not be matched.
func (tw *Writer) EmitBlockSkipped(line int, block, reason string) error {
	return tw.Emit(EventBlockSkipped, map[string]any{
		"line":   line,
		"block":  block,
		"reason": reason,
	})
}

// EmitRunComplete emits a run_complete event.
func (tw *Writer) EmitRunComplete(state, worst string, executed int, duration time.Duration) error {
	return tw.Emit(EventRunComplete, map[string]any{
		"state":    state,
		"worst":    worst,
		"executed": executed,
		"duration": duration.String(),
	})
}
