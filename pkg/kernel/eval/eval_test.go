package eval

import (
	"errors"
	"strings"
	"testing"
)

// mapExpander resolves ${Name} from values, leaving unknown names unresolved.
func mapExpander(values map[string]string) Expander {
	return func(text string) (string, []string) {
		var unresolved []string
		out := refRe.ReplaceAllStringFunc(text, func(ref string) string {
			name := strings.TrimSuffix(strings.TrimPrefix(ref, "${"), "}")
			if v, ok := values[name]; ok {
				return v
			}
			unresolved = append(unresolved, name)
			return ref
		})
		return out, unresolved
	}
}

func TestCondition(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"FALSE", false},
		{"true == true", true},
		{"true != true", false},
		{"5 > 10", false},
		{"10 >= 10", true},
		{"2.5 < 3", true},
		{"roads == roads", true},
		{`"roads" == 'roads'`, true},
		{"roads != rivers", true},
		{"abc < abd", true},
		{"5 == five", false},
		{"roads.geojson contains .geojson", true},
		{"roads.geojson !contains .shp", true},
		{"1 < 2 && 3 > 2", true},
	}
	for _, tt := range tests {
		got, err := Condition(tt.in)
		if err != nil {
			t.Errorf("Condition(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Condition(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCondition_UnresolvedIsFalse(t *testing.T) {
	got, err := Condition("${Flag} == true")
	if got {
		t.Error("unresolved condition must evaluate to false")
	}
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestCondition_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "true < false", "1 +"} {
		got, err := Condition(in)
		if err == nil {
			t.Errorf("Condition(%q) expected error", in)
		}
		if got {
			t.Errorf("Condition(%q) = true on error", in)
		}
	}
}

func TestEvaluate_OperatorCharactersInValues(t *testing.T) {
	expand := mapExpander(map[string]string{
		"Dept":  "R&D",
		"Dir":   `C:\Program Files (x86)`,
		"Pipe":  "a||b",
		"Quote": `say "hi"`,
		"Count": "12",
		"Flag":  "true",
	})
	tests := []struct {
		in   string
		want bool
	}{
		{"${Dept} != Sales", true},
		{"${Dept} == R&D", true},
		{"${Dir} contains (x86)", true},
		{`${Dir} == "C:\Program Files (x86)"`, true},
		{"${Pipe} != ${Dept}", true},
		{`${Dept} == "Sales" || ${Count} > 10`, true},
		{"${Dept} == \"R&D\" && ${Count} < 10", false},
		{`"${Quote}" == 'say "hi"'`, true},
		{"(${Count} > 10) && ${Flag}", true},
		{"!${Flag}", false},
		{"${Flag}", true},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.in, expand)
		if err != nil {
			t.Errorf("Evaluate(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEvaluate_Unresolved(t *testing.T) {
	got, err := Evaluate("${Missing} == x || true", mapExpander(nil))
	if got || !errors.Is(err, ErrUnresolved) {
		t.Errorf("got %v, %v; want false, ErrUnresolved", got, err)
	}
}
