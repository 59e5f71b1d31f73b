// Package buildengine implements the Series Builder and Build Engine:
// the memoised recursive computation that turns a Rule Graph into
// concrete commits. Cherry-picks always run unsigned here; signing only
// ever applies to the commits the Model creates directly for user edits.
package buildengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/opcache"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/rules"
)

// Engine is the Build Engine, bound to a Repository Façade (for rule
// reference updates) and an Operation Cache (for cherry-picks).
type Engine struct {
	repo      repo.Repository
	cache     *opcache.Cache
	refPrefix string // e.g. "refs/unstacked/rule/"
}

// New returns a Build Engine that records rule reference updates under
// refPrefix+name.
func New(r repo.Repository, cache *opcache.Cache, refPrefix string) *Engine {
	return &Engine{repo: r, cache: cache, refPrefix: refPrefix}
}

// IsTopPatch reports whether index identifies the "top" of a series with
// n patches: either unset (the parent's own output) or the last patch.
// Used to decide whether a partial build should update the rule
// reference.
func IsTopPatch(index *int, n int) bool {
	if index == nil {
		return true
	}
	return *index == n-1
}

// Build performs the full memoised recursion for name, dispatching on the
// rule's variant. An Anchor returns its fixed id. A Series recursively
// builds its parent then cherry-picks every patch, updating the rule
// reference on success.
func (e *Engine) Build(ctx context.Context, book *rules.Book, name string) (oid.Oid, error) {
	return e.build(ctx, book, name, map[string]bool{})
}

func (e *Engine) build(ctx context.Context, book *rules.Book, name string, inProgress map[string]bool) (oid.Oid, error) {
	rule, err := book.Rule(name)
	if err != nil {
		return oid.Zero, err
	}
	if rule.IsAnchor() {
		return rule.Anchor.Id, nil
	}
	if inProgress[name] {
		return oid.Zero, cycleError(inProgress, name)
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	result, err := e.buildSeriesPartial(ctx, book, name, rule.Series, len(rule.Series.Patches), inProgress)
	if err != nil {
		return oid.Zero, err
	}
	if err := e.updateRuleRef(ctx, name, result); err != nil {
		return oid.Zero, err
	}
	return result, nil
}

// BuildPath builds only the patch prefix of name identified by index:
// nil means "the parent's output" (zero patches applied), otherwise
// "through patches[0..=index] inclusive". The rule reference is updated
// only when IsTopPatch holds for the resulting index.
func (e *Engine) BuildPath(ctx context.Context, book *rules.Book, name string, index *int) (oid.Oid, error) {
	rule, err := book.Rule(name)
	if err != nil {
		return oid.Zero, err
	}
	if rule.IsAnchor() {
		return oid.Zero, fmt.Errorf("buildengine: %q is an anchor, not a valid path target", name)
	}
	count := 0
	if index != nil {
		count = *index + 1
	}
	inProgress := map[string]bool{name: true}
	result, err := e.buildSeriesPartial(ctx, book, name, rule.Series, count, inProgress)
	if err != nil {
		return oid.Zero, err
	}
	if IsTopPatch(index, len(rule.Series.Patches)) {
		if err := e.updateRuleRef(ctx, name, result); err != nil {
			return oid.Zero, err
		}
	}
	return result, nil
}

// BuildAll builds every rule in book, in the book's insertion order
// (book.Names()), returning each rule's resulting commit id. Order
// between independent subtrees is unobservable to correctness because
// the cache is deterministic; a fixed order only makes re-runs
// reproducible to watch.
func (e *Engine) BuildAll(ctx context.Context, book *rules.Book) (map[string]oid.Oid, error) {
	results := make(map[string]oid.Oid, len(book.Rules))
	for _, name := range book.Names() {
		id, err := e.Build(ctx, book, name)
		if err != nil {
			return nil, err
		}
		results[name] = id
	}
	return results, nil
}

// buildSeriesPartial is the Series Builder: resolve and build
// series' parent rule, then cherry-pick count patches onto it in order,
// rewriting patches[i] in place as each succeeds.
func (e *Engine) buildSeriesPartial(ctx context.Context, book *rules.Book, name string, series *rules.Series, count int, inProgress map[string]bool) (oid.Oid, error) {
	accum, err := e.build(ctx, book, series.Parent, inProgress)
	if err != nil {
		return oid.Zero, err
	}
	for i := 0; i < count; i++ {
		result, conflicts, err := e.cache.CherryPick(ctx, accum, series.Patches[i], nil)
		if err != nil {
			return oid.Zero, err
		}
		if len(conflicts) > 0 {
			return oid.Zero, &errs.PatchConflict{
				Path:  fmt.Sprintf("%s[%d]", name, i),
				Base:  accum.String(),
				Patch: series.Patches[i].String(),
			}
		}
		series.Patches[i] = result
		accum = result
	}
	return accum, nil
}

func (e *Engine) updateRuleRef(ctx context.Context, name string, id oid.Oid) error {
	return e.repo.SetReference(ctx, e.refPrefix+name, id, "build "+name)
}

func cycleError(inProgress map[string]bool, name string) error {
	names := make([]string, 0, len(inProgress)+1)
	for n := range inProgress {
		names = append(names, n)
	}
	names = append(names, name)
	sort.Strings(names)
	return &errs.Cycle{Names: names}
}
