// Package eval evaluates If conditions.
//
// The common form is a binary comparison "left OP right" where OP is one of
// ==, !=, <, <=, >, >=, contains or !contains. Operands are typed before
// comparison: true/false become booleans, numeric text becomes a number and
// anything else (optionally quoted) is a string. Mixed operand types are
// compared as strings. Conditions joining comparisons with && or ||, those
// starting with '(' or '!', and anything that is not a single comparison are
// compiled as expr-lang boolean expressions, e.g. "1 < 2 && 3 > 2".
//
// The form is chosen from the condition as written, before ${Name}
// references are expanded, so a property value never changes how the
// condition parses. In expressions, references outside string literals are
// bound as typed variables rather than spliced into the source.
package eval

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrUnresolved reports a condition that still contains ${...} references.
var ErrUnresolved = errors.New("condition has unresolved property references")

var (
	symbolicOpRe = regexp.MustCompile(`^(.*?)\s*(==|!=|<=|>=|<|>)\s*(.*)$`)
	wordOpRe     = regexp.MustCompile(`^(.*?)\s+(!contains|contains)\s+(.*)$`)
	refRe        = regexp.MustCompile(`\$\{([^}]*)\}`)
)

// Expander resolves ${Name} references in text and returns the names it
// could not resolve.
type Expander func(text string) (string, []string)

// literal is the Expander used when none is given: every reference is
// unresolved.
func literal(text string) (string, []string) {
	var names []string
	for _, m := range refRe.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return text, names
}

// Condition evaluates a condition that needs no expansion.
// Any error comes with a false result, so callers that ignore the error get
// "condition not met".
func Condition(text string) (bool, error) {
	return Evaluate(text, nil)
}

// Evaluate evaluates the condition raw, resolving references with expand.
// A nil expand treats every reference as unresolved.
func Evaluate(raw string, expand Expander) (bool, error) {
	if expand == nil {
		expand = literal
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, errors.New("empty condition")
	}
	full, unresolved := expand(raw)
	full = strings.TrimSpace(full)
	if len(unresolved) > 0 {
		return false, fmt.Errorf("%w: %s", ErrUnresolved, full)
	}
	switch strings.ToLower(full) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if isExpression(raw) {
		return expression(full, raw, expand)
	}
	if m := wordOpRe.FindStringSubmatch(raw); m != nil {
		return compare(full, side(m[1], expand), m[2], side(m[3], expand))
	}
	if m := symbolicOpRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return compare(full, side(m[1], expand), m[2], side(m[3], expand))
	}
	return expression(full, raw, expand)
}

func isExpression(raw string) bool {
	if strings.Contains(raw, "&&") || strings.Contains(raw, "||") {
		return true
	}
	return strings.HasPrefix(raw, "(") || (strings.HasPrefix(raw, "!") && !strings.HasPrefix(raw, "!="))
}

func side(raw string, expand Expander) string {
	v, _ := expand(raw)
	return v
}

// expression compiles raw as an expr-lang program. References inside string
// literals are expanded in place with quotes escaped; the others become
// variables holding the typed property value.
func expression(text, raw string, expand Expander) (bool, error) {
	var (
		b     strings.Builder
		env   = map[string]any{}
		quote byte
	)
	for i := 0; i < len(raw); {
		c := raw[i]
		if quote != 0 && c == '\\' && i+1 < len(raw) {
			b.WriteString(raw[i : i+2])
			i += 2
			continue
		}
		if strings.HasPrefix(raw[i:], "${") {
			if end := strings.IndexByte(raw[i:], '}'); end > 0 {
				v := side(raw[i:i+end+1], expand)
				if quote != 0 {
					v = strings.ReplaceAll(v, `\`, `\\`)
					b.WriteString(strings.ReplaceAll(v, string(quote), `\`+string(quote)))
				} else {
					name := "_ref" + strconv.Itoa(len(env))
					env[name] = operand(v)
					b.WriteString(name)
				}
				i += end + 1
				continue
			}
		}
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		}
		b.WriteByte(c)
		i++
	}
	return run(text, b.String(), env)
}

func compare(text, left, op, right string) (bool, error) {
	l, r := operand(left), operand(right)
	if _, ok := l.(string); ok {
		r = strings.TrimSpace(stripQuotes(right))
	} else if _, ok := r.(string); ok {
		l = strings.TrimSpace(stripQuotes(left))
	} else if fmt.Sprintf("%T", l) != fmt.Sprintf("%T", r) {
		l, r = fmt.Sprint(l), fmt.Sprint(r)
	}

	program := "a " + op + " b"
	switch op {
	case "contains":
		l, r = fmt.Sprint(l), fmt.Sprint(r)
	case "!contains":
		l, r = fmt.Sprint(l), fmt.Sprint(r)
		program = "not (a contains b)"
	}
	return run(text, program, map[string]any{"a": l, "b": r})
}

func run(text, program string, env map[string]any) (bool, error) {
	opts := []expr.Option{expr.AsBool(), expr.Env(env)}
	prog, err := expr.Compile(program, opts...)
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", text, err)
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", text, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a boolean (got %T)", text, out)
	}
	return result, nil
}

// operand types one side of a comparison.
func operand(raw string) any {
	raw = strings.TrimSpace(raw)
	if unq := stripQuotes(raw); unq != raw {
		return unq
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
