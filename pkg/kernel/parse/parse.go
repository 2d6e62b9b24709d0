// Package parse implements the command-file line grammar:
//
//	CommandName(Param1="Value1",Param2="Value2")
//
// Whitespace around the line and between tokens is insignificant. Parameter
// values are always double-quoted; inside a value the only escape is \"
// for an embedded quote, every other backslash is literal (so Windows
// paths need no doubling). A value cannot end in a backslash.
//
// Command and parameter names share one rule: letters of any script, digits,
// '_' and '.'.
//
// Lines whose first non-blank character is '#' are comments; lines with no
// non-blank content are blank. When a parameter name repeats, the last
// value wins and the name is reported in Parsed.Duplicates.
package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a parsed line.
type Kind int

const (
	KindCommand Kind = iota
	KindComment
	KindBlank
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindComment:
		return "comment"
	case KindBlank:
		return "blank"
	default:
		return "unknown"
	}
}

// Parsed is the result of parsing one line.
type Parsed struct {
	Kind       Kind
	Name       string
	Params     *Params
	Duplicates []string
	Indent     string // leading whitespace, preserved for writing
}

// Error is a syntax error located at a 1-based column.
type Error struct {
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("column %d: %s", e.Column, e.Msg)
}

// Line parses one line of command-file text. On a syntax error the returned
// Parsed still carries Kind=KindCommand, the Indent and, when it could be
// read, the command Name.
func Line(text string) (*Parsed, error) {
	text = strings.TrimRight(text, "\r\n")
	trimmed := strings.TrimSpace(text)
	indent := text[:len(text)-len(strings.TrimLeftFunc(text, unicode.IsSpace))]

	switch {
	case trimmed == "":
		return &Parsed{Kind: KindBlank, Indent: indent}, nil
	case strings.HasPrefix(trimmed, "#"):
		return &Parsed{Kind: KindComment, Indent: indent}, nil
	}

	s := &scanner{src: text, pos: len(indent)}
	p := &Parsed{Kind: KindCommand, Indent: indent, Params: &Params{}}

	open := strings.IndexByte(text, '(')
	if open < 0 {
		p.Name = strings.TrimSpace(text)
		return p, s.errorf(len(text), "missing '(' after command name")
	}
	p.Name = strings.TrimSpace(text[len(indent):open])
	if p.Name == "" {
		return p, s.errorf(open, "missing command name before '('")
	}
	if i := strings.IndexFunc(p.Name, func(r rune) bool { return !isNameRune(r) }); i >= 0 {
		return p, s.errorf(len(indent)+i, "invalid character %q in command name", p.Name[i])
	}
	s.pos = open + 1

	seen := make(map[string]bool)
	s.skipSpace()
	if s.peek() == ')' {
		s.pos++
		return p, s.expectEnd()
	}
	for {
		s.skipSpace()
		name := s.readName()
		if name == "" {
			if s.eof() {
				return p, s.errorf(s.pos, "missing ')'")
			}
			return p, s.errorf(s.pos, "expected parameter name, found %q", s.peek())
		}
		s.skipSpace()
		if s.peek() != '=' {
			return p, s.errorf(s.pos, "expected '=' after parameter %s", name)
		}
		s.pos++
		s.skipSpace()
		value, err := s.readQuoted(name)
		if err != nil {
			return p, err
		}
		if seen[name] {
			p.Duplicates = append(p.Duplicates, name)
		}
		seen[name] = true
		p.Params.Set(name, value)

		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case ')':
			s.pos++
			return p, s.expectEnd()
		case 0:
			return p, s.errorf(s.pos, "missing ')'")
		default:
			return p, s.errorf(s.pos, "expected ',' or ')', found %q", s.peek())
		}
	}
}

// Format renders the canonical form Name(P1="v1",P2="v2").
func Format(name string, params *Params) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, n := range params.Names() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(Quote(params.Value(n)))
	}
	b.WriteByte(')')
	return b.String()
}

// Quote wraps a value in double quotes, escaping embedded quotes.
func Quote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func isNameRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

// readName reads a parameter name with the same runes allowed in command
// names.
func (s *scanner) readName() string {
	start := s.pos
	for !s.eof() {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isNameRune(r) {
			break
		}
		s.pos += size
	}
	return s.src[start:s.pos]
}

func (s *scanner) readQuoted(param string) (string, error) {
	if s.peek() != '"' {
		return "", s.errorf(s.pos, "value of parameter %s must be double-quoted", param)
	}
	start := s.pos
	s.pos++
	var b strings.Builder
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '"':
			b.WriteByte('"')
			s.pos += 2
		case c == '"':
			s.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", s.errorf(start, "unterminated quote in parameter %s", param)
}

func (s *scanner) expectEnd() error {
	s.skipSpace()
	if !s.eof() {
		return s.errorf(s.pos, "unexpected text %q after ')'", s.src[s.pos:])
	}
	return nil
}

func (s *scanner) errorf(pos int, format string, args ...any) error {
	return &Error{Column: pos + 1, Msg: fmt.Sprintf(format, args...)}
}
