// Package rules implements the Rule Book: storage and typed access to
// named rules, plus the dependency lookup the Path Machine uses to find
// a series' successors. The Series/Anchor tagged union persists as a
// JSON object with exactly one of "Series" or "Anchor" present.
package rules

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
)

// Series produces a commit by cherry-picking patches[0..n] one-by-one
// onto the commit produced by Parent. Patches is mutated in place during
// a build: after a successful cherry-pick yielding commit X, patches[i]
// is overwritten with X, so a rebuild of an unchanged series only has to
// look each step up in the cache.
type Series struct {
	Parent  string    `json:"parent"`
	Patches []oid.Oid `json:"patches"`
}

// Anchor is an immutable reference to a concrete commit, a leaf of the
// Rule Graph.
type Anchor struct {
	Id oid.Oid `json:"id"`
}

// Rule is the Series | Anchor tagged union. Exactly one of Series/Anchor
// is non-nil for any valid Rule.
type Rule struct {
	Series *Series
	Anchor *Anchor
}

type ruleWire struct {
	Series *Series `json:"Series,omitempty"`
	Anchor *Anchor `json:"Anchor,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleWire{Series: r.Series, Anchor: r.Anchor})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Series, r.Anchor = w.Series, w.Anchor
	return nil
}

// NewSeries constructs a Series rule.
func NewSeries(parent string, patches []oid.Oid) Rule {
	return Rule{Series: &Series{Parent: parent, Patches: patches}}
}

// NewAnchor constructs an Anchor rule.
func NewAnchor(id oid.Oid) Rule {
	return Rule{Anchor: &Anchor{Id: id}}
}

// Parent returns the rule's parent rule name and true for a Series, or
// ("", false) for an Anchor.
func (r Rule) Parent() (string, bool) {
	if r.Series != nil {
		return r.Series.Parent, true
	}
	return "", false
}

// IsAnchor reports whether r is an Anchor rule.
func (r Rule) IsAnchor() bool { return r.Anchor != nil }

// Book is the in-memory Rule Book: a name -> Rule map plus the dependency
// lookups the Path Machine needs. Persistence lives one level up, in the
// Model's persisted blob. order records insertion order so BuildAll and
// other full-book iterations are deterministic across runs; the order
// carries no semantic meaning, only reproducibility.
type Book struct {
	Rules map[string]Rule `json:"rules"`
	order []string
}

// New returns an empty Rule Book.
func New() *Book {
	return &Book{Rules: map[string]Rule{}}
}

type bookWire struct {
	Rules map[string]Rule `json:"rules"`
	Order []string        `json:"order,omitempty"`
}

// MarshalJSON persists the rule map plus the insertion order that keeps
// Names/BuildAll reproducible across a save/load round trip.
func (b Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookWire{Rules: b.Rules, Order: b.order})
}

func (b *Book) UnmarshalJSON(data []byte) error {
	var w bookWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Rules = w.Rules
	if b.Rules == nil {
		b.Rules = map[string]Rule{}
	}
	if len(w.Order) > 0 {
		b.order = w.Order
		return nil
	}
	names := make([]string, 0, len(b.Rules))
	for n := range b.Rules {
		names = append(names, n)
	}
	sort.Strings(names)
	b.order = names
	return nil
}

// SetRule upserts a rule by name.
func (b *Book) SetRule(name string, r Rule) {
	if b.Rules == nil {
		b.Rules = map[string]Rule{}
	}
	if _, exists := b.Rules[name]; !exists {
		b.order = append(b.order, name)
	}
	b.Rules[name] = r
}

// Rule looks up a rule by name, failing with NotFound if absent.
func (b *Book) Rule(name string) (Rule, error) {
	r, ok := b.Rules[name]
	if !ok {
		return Rule{}, &errs.NotFound{Kind: "rule", Name: name}
	}
	return r, nil
}

// Series returns the Series behind name, failing with TypeMismatch if
// name names an Anchor instead.
func (b *Book) Series(name string) (*Series, error) {
	r, err := b.Rule(name)
	if err != nil {
		return nil, err
	}
	if r.Series == nil {
		return nil, &errs.TypeMismatch{Detail: fmt.Sprintf("rule %q is an anchor, not a series", name)}
	}
	return r.Series, nil
}

// FindRuleUse returns the names of rules that declare name as their
// parent, in a stable (sorted) order.
func (b *Book) FindRuleUse(name string) []string {
	var uses []string
	for candidate, r := range b.Rules {
		if parent, ok := r.Parent(); ok && parent == name {
			uses = append(uses, candidate)
		}
	}
	sort.Strings(uses)
	return uses
}

// Names returns every rule name in the book in insertion order, for
// deterministic full-book iteration (e.g. by BuildAll).
func (b *Book) Names() []string {
	return append([]string{}, b.order...)
}
