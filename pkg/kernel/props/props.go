// Package props implements the processor-wide property store and the
// ${Name} expander used to resolve dynamic references in parameter values.
package props

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Store maps case-sensitive property names to runtime values (string,
// number, boolean, time, list or opaque handle). The zero value is usable.
// A Store is not safe for concurrent use; the processor serializes access.
type Store struct {
	values map[string]any
}

// NewStore creates a store seeded with initial values.
func NewStore(initial map[string]any) *Store {
	s := &Store{values: make(map[string]any, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Set creates or overwrites a property.
func (s *Store) Set(name string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[name] = value
}

// Get returns a property value and whether it exists.
func (s *Store) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// GetOr returns a property value, or def when the property is not set.
func (s *Store) GetOr(name string, def any) any {
	if v, ok := s.values[name]; ok {
		return v
	}
	return def
}

// Delete removes a property.
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// Names returns all property names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of properties.
func (s *Store) Len() int { return len(s.values) }

// Snapshot returns a shallow copy of all properties.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Reset removes every property.
func (s *Store) Reset() {
	s.values = make(map[string]any)
}

// Expand replaces each ${Name} in text with the string form of the property
// value. Expansion is a single pass: substituted text is not rescanned.
// References to unknown properties are left as-is and their names returned.
// A '$' not followed by '{', or a '${' with no valid closing name, is kept.
func (s *Store) Expand(text string) (string, []string) {
	if !strings.Contains(text, "${") {
		return text, nil
	}
	var (
		b          strings.Builder
		unresolved []string
	)
	for i := 0; i < len(text); {
		if text[i] != '$' || i+1 >= len(text) || text[i+1] != '{' {
			b.WriteByte(text[i])
			i++
			continue
		}
		end := strings.IndexByte(text[i+2:], '}')
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		name := text[i+2 : i+2+end]
		ref := text[i : i+3+end]
		if !validName(name) {
			// Not a reference; emit "${" and keep scanning after it.
			b.WriteString("${")
			i += 2
			continue
		}
		if v, ok := s.Get(name); ok {
			b.WriteString(Format(v))
		} else {
			b.WriteString(ref)
			unresolved = append(unresolved, name)
		}
		i += len(ref)
	}
	return b.String(), unresolved
}

// References returns the property names referenced by ${...} in text.
func References(text string) []string {
	var names []string
	rest := text
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			return names
		}
		end := strings.IndexByte(rest[i+2:], '}')
		if end < 0 {
			return names
		}
		name := rest[i+2 : i+2+end]
		if validName(name) {
			names = append(names, name)
			rest = rest[i+3+end:]
		} else {
			rest = rest[i+2:]
		}
	}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-' || r == ':':
		default:
			return false
		}
	}
	return true
}

// Format returns the string form of a property value as it appears after
// expansion.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Type names accepted by ParseTyped.
const (
	TypeString   = "String"
	TypeInteger  = "Integer"
	TypeDouble   = "Double"
	TypeBoolean  = "Boolean"
	TypeDateTime = "DateTime"
)

// Types lists the names accepted by ParseTyped.
var Types = []string{TypeString, TypeInteger, TypeDouble, TypeBoolean, TypeDateTime}

// ParseTyped converts text to a value of the named type (case-insensitive).
// An empty type means String.
func ParseTyped(typ, text string) (any, error) {
	switch strings.ToLower(typ) {
	case "", "string":
		return text, nil
	case "integer":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", text)
		}
		return int(n), nil
	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", text)
		}
		return f, nil
	case "boolean":
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", text)
		}
		return b, nil
	case "datetime":
		return parseDateTime(strings.TrimSpace(text))
	default:
		return nil, fmt.Errorf("unknown property type %q (expected one of %s)", typ, strings.Join(Types, ", "))
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseDateTime(text string) (any, error) {
	if strings.EqualFold(text, "CurrentToSecond") {
		return time.Now().Truncate(time.Second), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date/time (use YYYY-MM-DD[THH:MM:SS] or CurrentToSecond)", text)
}
