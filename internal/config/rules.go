package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SizeThresholds are the diff-line cut points between MR size buckets.
// A merged MR with diff < Small is small, < Medium is medium, < Large
// is large, anything else is xl.
type SizeThresholds struct {
	Small  int `yaml:"small"`
	Medium int `yaml:"medium"`
	Large  int `yaml:"large"`
}

// Rules is the raw, YAML-backed rule configuration for aggregation.
// Teams maps a team name to its member usernames; a nil map means no
// team mapping was configured, which is distinct from an empty one.
type Rules struct {
	BotPatterns        []string            `yaml:"bot_patterns"`
	RevertPatterns     []string            `yaml:"revert_patterns"`
	HotfixPatterns     []string            `yaml:"hotfix_patterns"`
	MainBranchPatterns []string            `yaml:"main_branch_patterns"`
	BranchPrefixes     []string            `yaml:"branch_prefixes"`
	ConventionalTypes  []string            `yaml:"conventional_types"`
	MRSizeThresholds   SizeThresholds      `yaml:"mr_size_thresholds"`
	Teams              map[string][]string `yaml:"teams"`
}

// DefaultRules returns the rule set used when no rules file is given
func DefaultRules() *Rules {
	return &Rules{
		BotPatterns:        []string{`bot$`, `^renovate`, `^dependabot`, `^gitlab-ci`},
		RevertPatterns:     []string{`^revert`},
		HotfixPatterns:     []string{`hotfix`},
		MainBranchPatterns: []string{`^main$`, `^master$`, `^production$`},
		BranchPrefixes:     []string{`^feature/`, `^fix/`, `^hotfix/`, `^chore/`, `^release/`},
		ConventionalTypes:  []string{"feat", "fix", "docs", "style", "refactor", "perf", "test", "build", "ci", "chore", "revert"},
		MRSizeThresholds:   SizeThresholds{Small: 100, Medium: 500, Large: 1000},
	}
}

// LoadRules reads the YAML rules file at path. An empty path yields
// the defaults. Fields left empty in the file fall back to defaults,
// except Teams, which stays nil unless configured.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	mergeRules(rules, &loaded)
	return rules, nil
}

func mergeRules(dst, src *Rules) {
	if len(src.BotPatterns) > 0 {
		dst.BotPatterns = src.BotPatterns
	}
	if len(src.RevertPatterns) > 0 {
		dst.RevertPatterns = src.RevertPatterns
	}
	if len(src.HotfixPatterns) > 0 {
		dst.HotfixPatterns = src.HotfixPatterns
	}
	if len(src.MainBranchPatterns) > 0 {
		dst.MainBranchPatterns = src.MainBranchPatterns
	}
	if len(src.BranchPrefixes) > 0 {
		dst.BranchPrefixes = src.BranchPrefixes
	}
	if len(src.ConventionalTypes) > 0 {
		dst.ConventionalTypes = src.ConventionalTypes
	}
	if src.MRSizeThresholds != (SizeThresholds{}) {
		dst.MRSizeThresholds = src.MRSizeThresholds
	}
	if src.Teams != nil {
		dst.Teams = src.Teams
	}
}

// RuleSet is the compiled, immutable form of Rules shared read-only by
// all concurrently running aggregators.
type RuleSet struct {
	Revert         []*regexp.Regexp
	Hotfix         []*regexp.Regexp
	MainBranch     []*regexp.Regexp
	BranchPrefixes []*regexp.Regexp
	Conventional   *regexp.Regexp
	Sizes          SizeThresholds

	// TeamByMember is nil when no team map was configured. Callers
	// must treat nil as "capability unavailable", never as empty.
	TeamByMember map[string]string
}

// Compile validates and compiles the rules into a RuleSet
func (r *Rules) Compile() (*RuleSet, error) {
	rs := &RuleSet{Sizes: r.MRSizeThresholds}
	if rs.Sizes.Small <= 0 || rs.Sizes.Medium <= rs.Sizes.Small || rs.Sizes.Large <= rs.Sizes.Medium {
		return nil, fmt.Errorf("mr_size_thresholds must be ascending positive cut points, got %+v", rs.Sizes)
	}

	var err error
	if rs.Revert, err = compilePatterns(r.RevertPatterns); err != nil {
		return nil, fmt.Errorf("revert_patterns: %w", err)
	}
	if rs.Hotfix, err = compilePatterns(r.HotfixPatterns); err != nil {
		return nil, fmt.Errorf("hotfix_patterns: %w", err)
	}
	if rs.MainBranch, err = compilePatterns(r.MainBranchPatterns); err != nil {
		return nil, fmt.Errorf("main_branch_patterns: %w", err)
	}
	if rs.BranchPrefixes, err = compilePatterns(r.BranchPrefixes); err != nil {
		return nil, fmt.Errorf("branch_prefixes: %w", err)
	}

	types := make([]string, len(r.ConventionalTypes))
	for i, t := range r.ConventionalTypes {
		types[i] = regexp.QuoteMeta(t)
	}
	rs.Conventional, err = regexp.Compile(`^(` + strings.Join(types, "|") + `)(\([^)]*\))?!?: .+`)
	if err != nil {
		return nil, fmt.Errorf("conventional_types: %w", err)
	}

	if r.Teams != nil {
		rs.TeamByMember = make(map[string]string)
		for team, members := range r.Teams {
			for _, m := range members {
				rs.TeamByMember[m] = team
			}
		}
	}
	return rs, nil
}

// MatchesAny reports whether s matches any of the compiled patterns
func MatchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		expr := p
		if !strings.HasPrefix(expr, "(?") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
