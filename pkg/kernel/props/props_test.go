package props

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestExpand_IdentityWithoutReferences(t *testing.T) {
	s := NewStore(map[string]any{"X": 5})
	for _, in := range []string{"", "plain text", "cost $5", "$X", "a $ {X} b", "${", "tail $"} {
		got, unresolved := s.Expand(in)
		if got != in {
			t.Errorf("Expand(%q) = %q, want identity", in, got)
		}
		if len(unresolved) != 0 {
			t.Errorf("Expand(%q) unresolved = %v", in, unresolved)
		}
	}
}

func TestExpand_Substitutes(t *testing.T) {
	s := NewStore(map[string]any{
		"X":      5,
		"Name":   "roads",
		"Flag":   true,
		"Ratio":  2.5,
		"Whole":  3.0,
		"Layers": []any{"a", "b"},
	})
	tests := []struct {
		in, want string
	}{
		{"Value is ${X}", "Value is 5"},
		{"${Name}.geojson", "roads.geojson"},
		{"${Flag} == true", "true == true"},
		{"${Ratio}/${Whole}", "2.5/3"},
		{"${Layers}", "a,b"},
		{"$${X}", "$5"},
	}
	for _, tt := range tests {
		got, unresolved := s.Expand(tt.in)
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(unresolved) != 0 {
			t.Errorf("Expand(%q) unresolved = %v", tt.in, unresolved)
		}
	}
}

func TestExpand_UnresolvedLeftLiteral(t *testing.T) {
	s := NewStore(nil)
	got, unresolved := s.Expand("${Flag} == true and ${Other}")
	if got != "${Flag} == true and ${Other}" {
		t.Errorf("Expand = %q", got)
	}
	if diff := cmp.Diff([]string{"Flag", "Other"}, unresolved); diff != "" {
		t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_SinglePass(t *testing.T) {
	s := NewStore(map[string]any{"A": "${B}", "B": "deep"})
	got, _ := s.Expand("${A}")
	if got != "${B}" {
		t.Errorf("Expand = %q, nested references must not be re-expanded", got)
	}
}

func TestExpand_InvalidNameKept(t *testing.T) {
	s := NewStore(map[string]any{"X": 1})
	got, unresolved := s.Expand("${not valid} ${X}")
	if got != "${not valid} 1" {
		t.Errorf("Expand = %q", got)
	}
	if len(unresolved) != 0 {
		t.Errorf("unresolved = %v", unresolved)
	}
}

func TestReferences(t *testing.T) {
	got := References("${A} and ${B.c} but not ${bad name} or ${")
	if diff := cmp.Diff([]string{"A", "B.c"}, got); diff != "" {
		t.Errorf("References mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_GetOrAndReset(t *testing.T) {
	var s Store
	if _, ok := s.Get("missing"); ok {
		t.Error("missing property reported present")
	}
	if got := s.GetOr("missing", "def"); got != "def" {
		t.Errorf("GetOr = %v", got)
	}
	s.Set("B", 1)
	s.Set("A", 2)
	if diff := cmp.Diff([]string{"A", "B"}, s.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestParseTyped(t *testing.T) {
	tests := []struct {
		typ, text string
		want      any
		wantErr   bool
	}{
		{"", "abc", "abc", false},
		{"String", "5", "5", false},
		{"Integer", " 42 ", 42, false},
		{"integer", "4.2", nil, true},
		{"Double", "4.25", 4.25, false},
		{"Boolean", "True", true, false},
		{"Boolean", "yes", nil, true},
		{"DateTime", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"Polygon", "x", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseTyped(tt.typ, tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTyped(%q, %q) err = %v, wantErr %v", tt.typ, tt.text, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !cmp.Equal(tt.want, got) {
			t.Errorf("ParseTyped(%q, %q) = %#v, want %#v", tt.typ, tt.text, got, tt.want)
		}
	}
}
