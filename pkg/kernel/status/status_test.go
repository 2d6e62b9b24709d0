package status

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLog_WorstEmptyIsSuccess(t *testing.T) {
	var l Log
	if got := l.Worst(); got != Success {
		t.Errorf("Worst() = %s, want Success", got)
	}
	if got := l.WorstFor(PhaseRun); got != Success {
		t.Errorf("WorstFor(Run) = %s, want Success", got)
	}
}

func TestLog_WorstByPhase(t *testing.T) {
	var l Log
	l.AddEntry(PhaseInitialization, Warning, "duplicate parameter", "")
	l.AddEntry(PhaseRun, Success, "ok", "")
	l.AddEntry(PhaseRun, Failure, "boom", "check input")

	if got := l.Worst(); got != Failure {
		t.Errorf("Worst() = %s, want Failure", got)
	}
	if got := l.WorstFor(PhaseInitialization); got != Warning {
		t.Errorf("WorstFor(Initialization) = %s, want Warning", got)
	}
	if got := l.WorstFor(PhaseRun); got != Failure {
		t.Errorf("WorstFor(Run) = %s, want Failure", got)
	}
}

func TestLog_EntriesAccumulate(t *testing.T) {
	var l Log
	l.Add(Failuref(PhaseRun, "", "first %d", 1))
	l.Add(Failuref(PhaseRun, "", "second %d", 2))

	want := []Entry{
		{Phase: PhaseRun, Severity: Failure, Message: "first 1"},
		{Phase: PhaseRun, Severity: Failure, Message: "second 2"},
	}
	if diff := cmp.Diff(want, l.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if len(l.EntriesFor(PhaseInitialization)) != 0 {
		t.Error("expected no initialization entries")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	var l Log
	l.Add(Warningf(PhaseRun, "", "w"))
	got := l.Entries()
	got[0].Message = "mutated"
	if l.Entries()[0].Message != "w" {
		t.Error("Entries() exposed internal slice")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"Success", Success, false},
		{"warning", Warning, false},
		{" FAILURE ", Failure, false},
		{"fatal", Success, true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(Entry{Phase: PhaseRun, Severity: Warning, Message: "m"})
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		Severity Severity `json:"severity"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Severity != Warning {
		t.Errorf("round trip severity = %s", back.Severity)
	}
}

func TestWorstOf(t *testing.T) {
	var a, b Log
	a.Add(Warningf(PhaseRun, "", "w"))
	if got := WorstOf(&a, &b, nil); got != Warning {
		t.Errorf("WorstOf = %s, want Warning", got)
	}
}
