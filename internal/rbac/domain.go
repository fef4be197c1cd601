package rbac

import (
	"fmt"
	"strings"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Strategy combines a list of required permissions into one verdict.
type Strategy string

const (
	// StrategyAll requires every listed permission to be granted. An empty
	// list is trivially satisfied.
	StrategyAll Strategy = "ALL"
	// StrategyAny requires at least one listed permission. An empty list is
	// never satisfied, so a misconfigured requirement fails closed.
	StrategyAny Strategy = "ANY"
)

// ParseStrategy converts a string into a Strategy. The empty string maps to
// StrategyAll, matching the default combinator.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(StrategyAll):
		return StrategyAll, nil
	case string(StrategyAny):
		return StrategyAny, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", shared.ErrInvalidInput, s)
	}
}

// PermissionSet is a membership structure over permission strings.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a permission slice.
func NewPermissionSet(perms []string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports membership. No wildcard matching is performed.
func (s PermissionSet) Contains(permission string) bool {
	_, ok := s[permission]
	return ok
}

// Satisfies evaluates the required permissions under the given strategy.
func (s PermissionSet) Satisfies(required []string, strategy Strategy) bool {
	if strategy == StrategyAny {
		for _, p := range required {
			if s.Contains(p) {
				return true
			}
		}
		return false
	}
	for _, p := range required {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

// Slice returns the members in unspecified order.
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
