// Package navpath models a logical position inside the Rule Graph,
// independent of physical git parent edges, with next/previous/from-rule
// navigation defined purely in terms of the Rule Book.
package navpath

import (
	"fmt"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/rules"
)

// Side selects which end of a series FromRule targets.
type Side int

const (
	First Side = iota
	Last
)

// Path is a logical position inside a series: Index == nil means "before
// any of the series' own patches", i.e. equal to its parent's output.
type Path struct {
	Name  string `json:"name"`
	Index *int   `json:"index,omitempty"`
}

// At reports the 0-based patch index this path targets, and whether one
// is set at all.
func (p Path) At() (int, bool) {
	if p.Index == nil {
		return 0, false
	}
	return *p.Index, true
}

func withIndex(name string, i int) Path {
	return Path{Name: name, Index: &i}
}

// FromRule builds the path at one end of a series. Anchors are rejected:
// paths can only address positions inside a series.
func FromRule(book *rules.Book, name string, side Side) (Path, error) {
	rule, err := book.Rule(name)
	if err != nil {
		return Path{}, err
	}
	if rule.IsAnchor() {
		return Path{}, fmt.Errorf("navpath: %q is an anchor; can't target anchor rule", name)
	}
	n := len(rule.Series.Patches)
	if n == 0 {
		return Path{Name: name}, nil
	}
	if side == Last {
		return withIndex(name, n-1), nil
	}
	return withIndex(name, 0), nil
}

// Next advances to the next logical position. At the end of a series (or
// at its unset start with no patches applied), it defers to the series'
// dependents: none is a no-op, exactly one enters that series at First,
// more than one is Ambiguous.
func (p Path) Next(book *rules.Book) (Path, error) {
	series, err := book.Series(p.Name)
	if err != nil {
		return Path{}, err
	}
	n := len(series.Patches)
	if p.Index != nil && *p.Index+1 < n {
		return withIndex(p.Name, *p.Index+1), nil
	}
	uses := book.FindRuleUse(p.Name)
	switch len(uses) {
	case 0:
		return p, nil
	case 1:
		return FromRule(book, uses[0], First)
	default:
		return Path{}, &errs.Ambiguous{Rule: p.Name, Successors: uses}
	}
}

// Parent navigates backward: within a series' own patches, or recursing
// into the series' parent rule at Last once the start is reached.
func (p Path) Parent(book *rules.Book) (Path, error) {
	series, err := book.Series(p.Name)
	if err != nil {
		return Path{}, err
	}
	n := len(series.Patches)
	if p.Index == nil {
		if n > 0 {
			return withIndex(p.Name, n-1), nil
		}
		return FromRule(book, series.Parent, Last)
	}
	if *p.Index == 0 {
		return FromRule(book, series.Parent, Last)
	}
	return withIndex(p.Name, *p.Index-1), nil
}
