// Package safety implements the deterministic, pattern-based risk
// classifier: a pure function of (command text, safety level, compiled
// catalogue) with no I/O, classifying a structurally-parsed input
// against a closed, pre-compiled set.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

// MaxCommandBytes mirrors shelldomain.MaxCommandBytes; duplicated as a
// local constant so this package has no import-time dependency beyond
// what it already needs for Risk.
const MaxCommandBytes = shelldomain.MaxCommandBytes

// Validator holds a catalogue compiled once at construction time. It is
// safe for concurrent use: Validate never mutates the receiver.
type Validator struct {
	patterns []Pattern
}

// NewValidator compiles the default catalogue plus any extra pattern
// specs, failing ConfigInvalid if one of the extras doesn't compile.
func NewValidator(extra []PatternSpec) (*Validator, error) {
	v := &Validator{patterns: DefaultCatalogue()}
	for _, spec := range extra {
		if err := v.AddPattern(spec); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddPattern extends the catalogue before first use. Invalid patterns
// fail ConfigInvalid and leave the catalogue unchanged.
func (v *Validator) AddPattern(spec PatternSpec) error {
	compiled, err := compilePattern(spec)
	if err != nil {
		return shellerr.ConfigInvalidErr("safety.AddPattern", err)
	}
	v.patterns = append(v.patterns, compiled)
	return nil
}

func compilePattern(spec PatternSpec) (Pattern, error) {
	re, err := regexp.Compile(spec.Regexp)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", spec.Name, err)
	}
	return Pattern{
		Name:        spec.Name,
		Regexp:      re,
		Risk:        spec.Risk,
		Category:    spec.Category,
		Description: spec.Description,
	}, nil
}

// Validate classifies commandText under the given safety level. It is a
// pure function: identical inputs always produce an identical result,
// and it performs no I/O regardless of safety level.
func (v *Validator) Validate(commandText string, level shelldomain.SafetyLevel) (shelldomain.ValidationResult, error) {
	if strings.ContainsRune(commandText, 0) {
		return shelldomain.ValidationResult{}, shellerr.IntegrityViolationErr("safety.Validate", fmt.Errorf("command contains a NUL byte"))
	}
	if len(commandText) > MaxCommandBytes {
		return shelldomain.ValidationResult{}, shellerr.PolicyDeniedErr("safety.Validate", fmt.Errorf("command exceeds %d bytes", MaxCommandBytes))
	}

	executable, err := stripQuoteDelimiters(commandText)
	if err != nil {
		return shelldomain.ValidationResult{}, err
	}

	var matched []shelldomain.MatchedPattern
	risk := shelldomain.Safe
	for _, p := range v.patterns {
		if p.Regexp.MatchString(executable) {
			matched = append(matched, shelldomain.MatchedPattern{
				Name:        p.Name,
				Category:    p.Category,
				Description: p.Description,
				Risk:        p.Risk,
			})
			risk = risk.Max(p.Risk)
		}
	}

	blocked, reason := applyThreshold(risk, level, matched)
	return shelldomain.ValidationResult{
		Risk:            risk,
		MatchedPatterns: matched,
		Reason:          reason,
		Blocked:         blocked,
	}, nil
}

// applyThreshold implements the per-level blocking rules: strict blocks
// at >=High, moderate blocks at Critical, permissive never blocks.
func applyThreshold(risk shelldomain.Risk, level shelldomain.SafetyLevel, matched []shelldomain.MatchedPattern) (bool, string) {
	switch level {
	case shelldomain.Strict:
		if risk >= shelldomain.High {
			return true, blockReason(risk, matched)
		}
	case shelldomain.Permissive:
		// never blocks
	case shelldomain.Moderate:
		fallthrough
	default:
		if risk >= shelldomain.Critical {
			return true, blockReason(risk, matched)
		}
	}
	if risk == shelldomain.Safe {
		return false, ""
	}
	return false, flagReason(risk, matched)
}

