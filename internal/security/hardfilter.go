// Package security implements the layered access-control pipeline:
// deterministic hard filters, an advisory semantic sentinel, a keyword
// heuristic fallback, and the manager that merges them into one per-chunk
// access decision.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternRule is a configured hard-filter rule. Immutable after startup.
type PatternRule struct {
	Name       string
	Pattern    string
	Flags      string // "" or "IGNORECASE"
	Tag        string
	ForceAdmin bool
}

type compiledRule struct {
	re         *regexp.Regexp
	tag        string
	forceAdmin bool
}

// HardFilter evaluates deterministic pattern rules against text. It is the
// first merge layer: the only one with no external dependency.
type HardFilter struct {
	rules []compiledRule
}

// NewHardFilter compiles the rule set. A rule that fails to compile is a
// configuration error and aborts startup.
func NewHardFilter(rules []PatternRule) (*HardFilter, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		pattern := r.Pattern
		if strings.EqualFold(r.Flags, "IGNORECASE") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("hard pattern %q: %w", r.Name, err)
		}
		tag := r.Tag
		if tag == "" {
			tag = r.Name
		}
		compiled = append(compiled, compiledRule{re: re, tag: tag, forceAdmin: r.ForceAdmin})
	}
	return &HardFilter{rules: compiled}, nil
}

// HardResult holds the tags of all fired rules and whether any of them
// forces the admin label.
type HardResult struct {
	Tags        []string
	ForcedAdmin bool
}

// Check evaluates every rule independently; multiple tags may fire.
func (f *HardFilter) Check(text string) HardResult {
	var res HardResult
	for _, r := range f.rules {
		if r.re.MatchString(text) {
			res.Tags = append(res.Tags, r.tag)
			if r.forceAdmin {
				res.ForcedAdmin = true
			}
		}
	}
	return res
}
