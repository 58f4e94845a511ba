// Package broll derives stock-footage search keywords from B-roll cues and
// matches each keyword to a clip from the footage service.
package broll

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/supernova/supernova/internal/script"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps any of its trigger substrings to a search keyword.
type Rule struct {
	Triggers []string `yaml:"triggers"`
	Keyword  string   `yaml:"keyword"`
}

// RuleTable is an ordered list of rules plus the keyword used when none match.
type RuleTable struct {
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// Keyword is the search phrase chosen for one B-roll segment.
type Keyword struct {
	TimeRangeKey string `json:"time_range_key"`
	Keyword      string `json:"keyword"`
	Description  string `json:"description"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleTable {
	table, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded broll rules: %v", err))
	}
	return table
}

// LoadRules reads a rule table from a YAML file. An empty path yields the
// built-in table.
func LoadRules(path string) (*RuleTable, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read broll rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table. Triggers are
// lower-cased so matching stays case-insensitive.
func ParseRules(data []byte) (*RuleTable, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse broll rules: %w", err)
	}
	if strings.TrimSpace(table.Fallback) == "" {
		return nil, fmt.Errorf("parse broll rules: fallback keyword is required")
	}
	for i := range table.Rules {
		r := &table.Rules[i]
		if r.Keyword == "" || len(r.Triggers) == 0 {
			return nil, fmt.Errorf("parse broll rules: rule %d needs a keyword and at least one trigger", i)
		}
		for j, trig := range r.Triggers {
			r.Triggers[j] = strings.ToLower(trig)
		}
	}
	return &table, nil
}

// Match returns the keyword for a description. Rules are tried in table
// order and the first hit wins.
func (t *RuleTable) Match(description string) string {
	lower := strings.ToLower(description)
	for _, r := range t.Rules {
		for _, trig := range r.Triggers {
			if strings.Contains(lower, trig) {
				return r.Keyword
			}
		}
	}
	return t.Fallback
}

// ExtractKeywords emits one Keyword per B-roll segment, in segment order.
// A-roll segments are ignored.
func (t *RuleTable) ExtractKeywords(segments []script.Segment) []Keyword {
	var out []Keyword
	for _, seg := range segments {
		if seg.Role != script.RoleBRoll {
			continue
		}
		out = append(out, Keyword{
			TimeRangeKey: seg.TimeRangeKey,
			Keyword:      t.Match(seg.RawDescription),
			Description:  seg.RawDescription,
		})
	}
	return out
}
