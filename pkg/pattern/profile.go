// Package pattern provides a pluggable registry of segmentation profiles:
// the heading pattern, fallback behavior, and classification cues used to
// turn normalized document text into statements. Profiles load from YAML
// files and can be hot-reloaded, so new numbering conventions do not
// require a rebuild.
package pattern

import (
	"fmt"
	"regexp"

	"github.com/coolbeans/statext/pkg/statement"
)

// DefaultProfileID identifies the built-in dotted-numeric profile.
const DefaultProfileID = "numeric-dotted"

// Profile defines how one document convention is segmented and classified.
type Profile struct {
	// Metadata
	Name      string `yaml:"name" json:"name"`
	Version   string `yaml:"version" json:"version"`
	ProfileID string `yaml:"profile_id" json:"profile_id"`

	// Heading configures heading detection.
	Heading HeadingConfig `yaml:"heading" json:"heading"`

	// Fallback configures paragraph splitting when no headings match.
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// Rules are ordered classification cues; first match wins.
	Rules []CueRule `yaml:"rules" json:"rules"`

	compiled bool
}

// HeadingConfig defines the heading pattern for a profile. The pattern is
// matched against single lines; ReferenceGroup captures the numeric path
// and TitleGroup captures any inline title text after it.
type HeadingConfig struct {
	Pattern        string `yaml:"pattern" json:"pattern"`
	ReferenceGroup int    `yaml:"reference_group" json:"reference_group"`
	TitleGroup     int    `yaml:"title_group" json:"title_group"`

	compiledPattern *regexp.Regexp
}

// FallbackConfig controls the blank-line paragraph fallback used when a
// document contains no headings at all.
type FallbackConfig struct {
	// MinLength drops fallback paragraphs shorter than this many
	// characters after trimming. Zero keeps everything non-empty.
	MinLength int `yaml:"min_length" json:"min_length"`
}

// CueRule maps a lexical pattern to a statement type.
type CueRule struct {
	Name    string         `yaml:"name" json:"name"`
	Pattern string         `yaml:"pattern" json:"pattern"`
	Type    statement.Type `yaml:"type" json:"type"`

	compiledPattern *regexp.Regexp
}

// Validate checks that the profile has the required fields and a coherent
// rule set.
func (p *Profile) Validate() error {
	if p.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Heading.Pattern == "" {
		return fmt.Errorf("heading.pattern is required")
	}
	if p.Heading.ReferenceGroup < 1 {
		return fmt.Errorf("heading.reference_group must be >= 1")
	}
	for i, rule := range p.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("rule %d (%s): pattern is required", i, rule.Name)
		}
		switch rule.Type {
		case statement.TypeObligation, statement.TypeProhibition,
			statement.TypeRecommendation, statement.TypeDefinition,
			statement.TypeException:
		default:
			return fmt.Errorf("rule %d (%s): unknown statement type %q", i, rule.Name, rule.Type)
		}
	}
	return nil
}

// Compile compiles the heading pattern and all rule patterns.
func (p *Profile) Compile() error {
	re, err := regexp.Compile(p.Heading.Pattern)
	if err != nil {
		return fmt.Errorf("compiling heading pattern: %w", err)
	}
	if p.Heading.ReferenceGroup > re.NumSubexp() {
		return fmt.Errorf("heading.reference_group %d exceeds %d capture groups", p.Heading.ReferenceGroup, re.NumSubexp())
	}
	p.Heading.compiledPattern = re

	for i := range p.Rules {
		compiled, err := regexp.Compile(p.Rules[i].Pattern)
		if err != nil {
			return fmt.Errorf("compiling rule %q: %w", p.Rules[i].Name, err)
		}
		p.Rules[i].compiledPattern = compiled
	}

	p.compiled = true
	return nil
}

// IsCompiled reports whether Compile has run successfully.
func (p *Profile) IsCompiled() bool {
	return p.compiled
}

// HeadingRegexp returns the compiled heading pattern. It panics if the
// profile has not been compiled; registry users always receive compiled
// profiles.
func (p *Profile) HeadingRegexp() *regexp.Regexp {
	if !p.compiled {
		panic("pattern: profile not compiled")
	}
	return p.Heading.compiledPattern
}

// MatchCue returns the statement type of the first rule matching the text
// and true, or a zero type and false when no rule matches.
func (p *Profile) MatchCue(text string) (statement.Type, bool) {
	for i := range p.Rules {
		if p.Rules[i].compiledPattern != nil && p.Rules[i].compiledPattern.MatchString(text) {
			return p.Rules[i].Type, true
		}
	}
	return "", false
}

// DefaultProfile returns the built-in dotted-numeric profile, compiled.
// The heading is an anchored numeric path of dot-separated integers at the
// start of a line with optional punctuation and inline title; the cue set
// implements the fixed classification taxonomy.
func DefaultProfile() *Profile {
	p := &Profile{
		Name:      "Dotted numeric sections",
		Version:   "1.0.0",
		ProfileID: DefaultProfileID,
		Heading: HeadingConfig{
			Pattern:        `^(\d+(?:\.\d+)*)[.):]?[ \t]*(\S.*)?$`,
			ReferenceGroup: 1,
			TitleGroup:     2,
		},
		Fallback: FallbackConfig{MinLength: 1},
		Rules:    defaultCueRules(),
	}
	if err := p.Compile(); err != nil {
		// The built-in profile is covered by tests; a compile failure here
		// is a programming error.
		panic(fmt.Sprintf("pattern: default profile: %v", err))
	}
	return p
}

// defaultCueRules returns the ordered built-in cue set. Prohibition cues
// precede obligation cues so "shall not" never reads as an obligation, and
// exception cues only match as leading clauses.
func defaultCueRules() []CueRule {
	return []CueRule{
		{
			Name:    "exception-leading-clause",
			Pattern: `(?i)^\s*(?:except|unless|notwithstanding)\b`,
			Type:    statement.TypeException,
		},
		{
			Name:    "prohibition-shall-not",
			Pattern: `(?i)\b(?:shall not|must not|may not|prohibited|forbidden)\b`,
			Type:    statement.TypeProhibition,
		},
		{
			Name:    "definition-means",
			Pattern: `(?i)\b(?:means|is defined as|refers to)\b`,
			Type:    statement.TypeDefinition,
		},
		{
			Name:    "obligation-shall",
			Pattern: `(?i)\b(?:shall|must|is required to|are required to)\b`,
			Type:    statement.TypeObligation,
		},
		{
			Name:    "recommendation-should",
			Pattern: `(?i)\b(?:should|recommended|encouraged to)\b`,
			Type:    statement.TypeRecommendation,
		},
	}
}
