// Package governance holds the policies applied to what a run records.
package governance

import (
	"fmt"
	"regexp"
)

// DefaultReplace replaces a match when a rule gives no replacement.
const DefaultReplace = "[REDACTED]"

// Rule is a redaction rule: every match of Pattern is replaced by Replace,
// which may refer to submatches as $1 or ${name}.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Replace string `yaml:"replace" json:"replace,omitempty"`
}

// compiledRule is a pre-compiled redaction rule.
type compiledRule struct {
	pattern *regexp.Regexp
	replace string
}

// Redactor applies redaction rules in order. A nil *Redactor leaves text
// unchanged.
type Redactor struct {
	rules []compiledRule
}

// Compile compiles rules into a Redactor.
func Compile(rules []Rule) (*Redactor, error) {
	r := &Redactor{}
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %d: %w", i+1, err)
		}
		replace := rule.Replace
		if replace == "" {
			replace = DefaultReplace
		}
		r.rules = append(r.rules, compiledRule{pattern: re, replace: replace})
	}
	return r, nil
}

// Redact applies every rule to s.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replace)
	}
	return s
}

// Len returns the number of rules.
func (r *Redactor) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}
