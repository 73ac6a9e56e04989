package graph

import "fmt"

// ConfigError is the family of fatal, configuration-time errors from
// spec.md §4.1 and §7: detected during graph resolution, before any
// transformer executes.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ConfigErrorCode enumerates the configuration errors named in spec.md.
type ConfigErrorCode string

const (
	ProductWithoutProducts ConfigErrorCode = "ProductWithoutProducts"
	DuplicateGeneratedArtifact ConfigErrorCode = "DuplicateGeneratedArtifact"
	CyclicRuleGraph ConfigErrorCode = "CyclicRuleGraph"
	UnresolvedDependency ConfigErrorCode = "UnresolvedDependency"
)

func newConfigError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation represents a failed internal consistency check
// (spec.md §7: "programming bugs, abort"). It always carries the
// offending artifact path.
type InvariantViolation struct {
	ArtifactPath string
	Message      string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("build graph invariant violated for %q: %s", e.ArtifactPath, e.Message)
}

// UnreachableRuleWarning is a supplemental, non-fatal diagnostic (see
// SPEC_FULL.md §4, grounded on Qbs RuleGraph's equivalent warning): a
// rule has no path to any root rule, so its outputs never feed the
// product's target file-tags. The rule is still applied to any matching
// inputs.
type UnreachableRuleWarning struct {
	ProductName string
	RuleID      string
}

func (w *UnreachableRuleWarning) Error() string {
	return fmt.Sprintf("product %q: rule %q does not feed any of the product's target file-tags", w.ProductName, w.RuleID)
}
