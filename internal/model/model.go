// Package model implements the orchestrator that owns the Rule Book and
// Focus, persists both as a single JSON blob under a dedicated
// reference, and exposes the user-level operations (goto, commit, amend,
// build) every other component is assembled to serve.
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vapourismo/unstacked/internal/buildengine"
	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/logging"
	"github.com/vapourismo/unstacked/internal/navpath"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/opcache"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/rules"
	"github.com/vapourismo/unstacked/internal/worktree"
)

// Focus is the user's remembered logical position plus the physical
// commit last checked out for it.
type Focus struct {
	Path navpath.Path `json:"path"`
	Id   oid.Oid      `json:"id"`
}

// State is the persisted shape of the Model: { rules, focus? }.
type State struct {
	Rules *rules.Book `json:"rules"`
	Focus *Focus      `json:"focus,omitempty"`
}

// unrealised is one entry of the undo/redo list kept under the state
// reference: a commit id pushed by Undo and restored by Redo. prev and
// next navigation neither push onto nor pop from this list.
type unrealised struct {
	Id   oid.Oid     `json:"id"`
	Next *unrealised `json:"next,omitempty"`
}

type stateWire struct {
	Next *unrealised `json:"next,omitempty"`
}

// Model ties the Rule Book and Focus to the Build Engine, Operation
// Cache, and Worktree Reconciler.
type Model struct {
	repo      repo.Repository
	cache     *opcache.Cache
	engine    *buildengine.Engine
	reconcile *worktree.Reconciler

	modelRef string
	stateRef string

	state *State
	undo  *unrealised // head of the undo/redo list
}

// Refs is the set of references a Model instance is bound to, namespaced
// the way internal/config's Namespace configures (default "unstacked").
type Refs struct {
	Model string // e.g. "refs/unstacked/model"
	Cache string // e.g. "refs/unstacked/cache"
	State string // e.g. "refs/unstacked/state"
	Rule  string // prefix, e.g. "refs/unstacked/rule/"
}

// Load opens the Model from refs.Model (or initialises an empty one),
// clearing the focus if the repository's current HEAD no longer matches
// the stored focus commit. A stale focus means some external git command
// moved HEAD between invocations.
func Load(ctx context.Context, r repo.Repository, refs Refs) (*Model, error) {
	cache := opcache.Open(ctx, r, refs.Cache)
	m := &Model{
		repo:      r,
		cache:     cache,
		engine:    buildengine.New(r, cache, refs.Rule),
		reconcile: worktree.New(r),
		modelRef:  refs.Model,
		stateRef:  refs.State,
		state:     &State{Rules: rules.New()},
	}

	if id, found, err := r.Reference(ctx, refs.Model); err != nil {
		return nil, err
	} else if found {
		blob, err := r.FindBlob(ctx, id)
		if err != nil {
			return nil, err
		}
		var state State
		if err := json.Unmarshal(blob, &state); err != nil {
			return nil, &errs.Decode{Context: "model", Cause: err}
		}
		if state.Rules == nil {
			state.Rules = rules.New()
		}
		m.state = &state
	}

	if m.state.Focus != nil {
		head, err := r.HeadCommit(ctx)
		if err != nil || head.Oid != m.state.Focus.Id {
			reason := &errs.UnexpectedHEAD{Stored: m.state.Focus.Id.String()}
			if err == nil {
				reason.Current = head.Oid.String()
			}
			logging.Log().WithError(reason).Warn("model: clearing stale focus")
			m.state.Focus = nil
		}
	}

	if id, found, err := r.Reference(ctx, refs.State); err != nil {
		return nil, err
	} else if found {
		blob, err := r.FindBlob(ctx, id)
		if err != nil {
			return nil, err
		}
		var wire stateWire
		if err := json.Unmarshal(blob, &wire); err != nil {
			return nil, &errs.Decode{Context: "state", Cause: err}
		}
		m.undo = wire.Next
	}

	return m, nil
}

// Rules exposes the in-memory Rule Book for read access (e.g. CLI
// listing commands).
func (m *Model) Rules() *rules.Book { return m.state.Rules }

// Focus returns the current focus, or nil if unset.
func (m *Model) Focus() *Focus { return m.state.Focus }

func (m *Model) persist(ctx context.Context) error {
	data, err := json.Marshal(m.state)
	if err != nil {
		return &errs.Encode{Context: "model", Cause: err}
	}
	blobOid, err := m.repo.WriteBlob(ctx, data)
	if err != nil {
		return err
	}
	if err := m.repo.SetReference(ctx, m.modelRef, blobOid, "Update Model"); err != nil {
		return err
	}
	return m.cache.Save(ctx)
}

func (m *Model) persistState(ctx context.Context) error {
	data, err := json.Marshal(stateWire{Next: m.undo})
	if err != nil {
		return &errs.Encode{Context: "state", Cause: err}
	}
	blobOid, err := m.repo.WriteBlob(ctx, data)
	if err != nil {
		return err
	}
	return m.repo.SetReference(ctx, m.stateRef, blobOid, "Update state")
}

// NewSeries creates a series rule with the given parent and no patches.
func (m *Model) NewSeries(ctx context.Context, name, parent string) error {
	m.state.Rules.SetRule(name, rules.NewSeries(parent, nil))
	return m.persist(ctx)
}

// NewAnchor creates an anchor rule fixed at id.
func (m *Model) NewAnchor(ctx context.Context, name string, id oid.Oid) error {
	m.state.Rules.SetRule(name, rules.NewAnchor(id))
	return m.persist(ctx)
}

// Build runs the Build Engine over a single rule without moving focus.
func (m *Model) Build(ctx context.Context, name string) (oid.Oid, error) {
	id, err := m.engine.Build(ctx, m.state.Rules, name)
	if err != nil {
		return oid.Zero, err
	}
	return id, m.persist(ctx)
}

// BuildAll runs the Build Engine over every rule without moving focus.
func (m *Model) BuildAll(ctx context.Context) (map[string]oid.Oid, error) {
	results, err := m.engine.BuildAll(ctx, m.state.Rules)
	if err != nil {
		return nil, err
	}
	return results, m.persist(ctx)
}

// GotoRule sets the focus to the last position of name and reconciles
// the worktree onto it.
func (m *Model) GotoRule(ctx context.Context, name string) error {
	path, err := navpath.FromRule(m.state.Rules, name, navpath.Last)
	if err != nil {
		return err
	}
	return m.gotoPath(ctx, path)
}

// GotoNext advances the focus to its next logical position. A no-op
// (with a logged warning) if no focus is currently set.
func (m *Model) GotoNext(ctx context.Context) error {
	if m.state.Focus == nil {
		logging.Log().Warn("goto-next: no focus set")
		return nil
	}
	next, err := m.state.Focus.Path.Next(m.state.Rules)
	if err != nil {
		return err
	}
	return m.gotoPath(ctx, next)
}

// GotoParent moves the focus to its parent logical position. A no-op
// (with a logged warning) if no focus is currently set.
func (m *Model) GotoParent(ctx context.Context) error {
	if m.state.Focus == nil {
		logging.Log().Warn("goto-parent: no focus set")
		return nil
	}
	parent, err := m.state.Focus.Path.Parent(m.state.Rules)
	if err != nil {
		return err
	}
	return m.gotoPath(ctx, parent)
}

func (m *Model) gotoPath(ctx context.Context, path navpath.Path) error {
	targetOid, err := m.engine.BuildPath(ctx, m.state.Rules, path.Name, path.Index)
	if err != nil {
		return err
	}
	targetCommit, err := m.repo.FindCommit(ctx, targetOid.String())
	if err != nil {
		return err
	}
	if err := m.reconcile.Reconcile(ctx, targetCommit); err != nil {
		return err
	}
	m.state.Focus = &Focus{Path: path, Id: targetOid}
	return m.persist(ctx)
}

// CommitOntoFocus captures the index (if useIndex) or working directory
// as a new commit parented on the current focus, inserts it into the
// focused series immediately after the focus position, and advances
// focus onto it.
func (m *Model) CommitOntoFocus(ctx context.Context, message string, useIndex bool, sign repo.Signer) error {
	if m.state.Focus == nil {
		logging.Log().Warn("commit: no focus set")
		return nil
	}
	if message == "" {
		return &errs.EmptyMessage{}
	}
	tree, err := m.captureTree(ctx, useIndex)
	if err != nil {
		return err
	}
	sig, err := m.repo.Signature(ctx)
	if err != nil {
		return err
	}
	parents := []oid.Oid{m.state.Focus.Id}
	var newOid oid.Oid
	if sign != nil {
		newOid, err = m.repo.CreateCommitSigned(ctx, sig, sig, message, tree, parents, sign)
	} else {
		newOid, err = m.repo.CreateCommit(ctx, sig, sig, message, tree, parents)
	}
	if err != nil {
		return err
	}

	series, err := m.state.Rules.Series(m.state.Focus.Path.Name)
	if err != nil {
		return err
	}
	insertAt := len(series.Patches)
	if idx, ok := m.state.Focus.Path.At(); ok {
		insertAt = idx + 1
	}
	series.Patches = append(series.Patches, oid.Zero)
	copy(series.Patches[insertAt+1:], series.Patches[insertAt:])
	series.Patches[insertAt] = newOid

	return m.gotoPath(ctx, navpath.Path{Name: m.state.Focus.Path.Name, Index: intPtr(insertAt)})
}

// AmendFocus replaces the tree of the focus commit, re-creating it in
// place within the series. Fails if the focus has no patch index to
// amend into (i.e. it points at a series' unset/parent-output position).
func (m *Model) AmendFocus(ctx context.Context, useIndex bool, sign repo.Signer) error {
	if m.state.Focus == nil {
		logging.Log().Warn("amend: no focus set")
		return nil
	}
	idx, ok := m.state.Focus.Path.At()
	if !ok {
		return fmt.Errorf("model: amend: focus %q has no patch index to amend", m.state.Focus.Path.Name)
	}
	tree, err := m.captureTree(ctx, useIndex)
	if err != nil {
		return err
	}
	focusCommit, err := m.repo.FindCommit(ctx, m.state.Focus.Id.String())
	if err != nil {
		return err
	}
	sig, err := m.repo.Signature(ctx)
	if err != nil {
		return err
	}
	var newOid oid.Oid
	if sign != nil {
		newOid, err = m.repo.CreateCommitSigned(ctx, focusCommit.Author, sig, focusCommit.Message, tree, focusCommit.Parents, sign)
	} else {
		newOid, err = m.repo.CreateCommit(ctx, focusCommit.Author, sig, focusCommit.Message, tree, focusCommit.Parents)
	}
	if err != nil {
		return err
	}

	series, err := m.state.Rules.Series(m.state.Focus.Path.Name)
	if err != nil {
		return err
	}
	series.Patches[idx] = newOid

	return m.gotoPath(ctx, navpath.Path{Name: m.state.Focus.Path.Name, Index: intPtr(idx)})
}

func (m *Model) captureTree(ctx context.Context, useIndex bool) (oid.Oid, error) {
	if useIndex {
		return m.repo.StagedTree(ctx)
	}
	return m.repo.WorkdirTree(ctx)
}

func intPtr(i int) *int { return &i }

// Undo pushes the current focus commit onto the undo/redo list. It does
// not move the focus or touch the worktree. No other operation pushes
// onto the list automatically, so Undo/Redo are the only way it is
// populated and consumed.
func (m *Model) Undo(ctx context.Context) error {
	if m.state.Focus == nil {
		return fmt.Errorf("model: undo: no focus set")
	}
	m.undo = &unrealised{Id: m.state.Focus.Id, Next: m.undo}
	return m.persistState(ctx)
}

// Redo restores the most recently undone commit as the focus's physical
// id without changing the logical path, if the undo list is non-empty.
func (m *Model) Redo(ctx context.Context) error {
	if m.undo == nil {
		return fmt.Errorf("model: redo: nothing to redo")
	}
	if m.state.Focus == nil {
		return fmt.Errorf("model: redo: no focus set")
	}
	restored := m.undo.Id
	m.undo = m.undo.Next
	commit, err := m.repo.FindCommit(ctx, restored.String())
	if err != nil {
		return err
	}
	if err := m.reconcile.Reconcile(ctx, commit); err != nil {
		return err
	}
	m.state.Focus.Id = restored
	if err := m.persist(ctx); err != nil {
		return err
	}
	return m.persistState(ctx)
}
