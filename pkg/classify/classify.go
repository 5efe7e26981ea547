// Package classify assigns statement types from a fixed taxonomy using
// ordered lexical-cue rules. Classification is deterministic: the same
// body text always yields the same type.
package classify

import (
	"github.com/coolbeans/statext/pkg/pattern"
	"github.com/coolbeans/statext/pkg/statement"
)

// DefaultType is assigned when no cue rule matches. It mirrors the
// catch-all used by the paragraph fallback parser.
const DefaultType = statement.TypeDefinition

// Classifier evaluates a profile's cue rules against statement bodies.
type Classifier struct {
	profile *pattern.Profile
}

// NewClassifier creates a Classifier using the built-in cue set.
func NewClassifier() *Classifier {
	return &Classifier{profile: pattern.DefaultProfile()}
}

// NewClassifierWithProfile creates a Classifier using the given profile's
// cue rules, falling back to the built-in set when nil.
func NewClassifierWithProfile(p *pattern.Profile) *Classifier {
	if p == nil {
		return NewClassifier()
	}
	return &Classifier{profile: p}
}

// Classify returns the type of the first matching cue rule, or
// DefaultType when no rule matches.
func (c *Classifier) Classify(body string) statement.Type {
	if t, ok := c.profile.MatchCue(body); ok {
		return t
	}
	return DefaultType
}
