package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace stream.
type VerifyResult struct {
	EventCount int
	Valid      bool
	BrokenAt   int // 1-based event number, -1 if no break
	Complete   bool
	Error      string
}

// VerifyFile verifies the hash chain of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify checks that every event's prev_hash matches the hash of the line
// before it, and reports whether the stream ends with run_complete.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	expected := genesis
	count := 0
	var last EventType

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		count++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return &VerifyResult{EventCount: count, BrokenAt: count,
				Error: fmt.Sprintf("event %d: invalid JSON: %v", count, err)}, nil
		}
		if evt.PrevHash != expected {
			return &VerifyResult{EventCount: count, BrokenAt: count,
				Error: fmt.Sprintf("event %d: prev_hash mismatch", count)}, nil
		}
		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
		last = evt.Type
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return &VerifyResult{
		EventCount: count,
		Valid:      true,
		BrokenAt:   -1,
		Complete:   last == EventRunComplete,
	}, nil
}
