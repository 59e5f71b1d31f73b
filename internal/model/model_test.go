package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/repo/repotest"
)

func testRefs() Refs {
	return Refs{
		Model: "refs/unstacked/model",
		Cache: "refs/unstacked/cache",
		State: "refs/unstacked/state",
		Rule:  "refs/unstacked/rule/",
	}
}

func commit(t *testing.T, ctx context.Context, r *repotest.FakeRepo, files map[string]string, parents []oid.Oid) oid.Oid {
	t.Helper()
	entries := map[string]repo.TreeEntry{}
	for name, content := range files {
		blob, err := r.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries[name] = repo.TreeEntry{Mode: "100644", Oid: blob}
	}
	tree, err := r.WriteTree(ctx, entries)
	require.NoError(t, err)
	sig, err := r.Signature(ctx)
	require.NoError(t, err)
	id, err := r.CreateCommit(ctx, sig, sig, "commit", tree, parents)
	require.NoError(t, err)
	return id
}

func setupFeatSeries(t *testing.T, ctx context.Context, r *repotest.FakeRepo, m *Model) (a, p1, p2 oid.Oid) {
	t.Helper()
	a = commit(t, ctx, r, map[string]string{"f": "base"}, nil)
	require.NoError(t, r.Reset(ctx, a, repo.ResetHard))

	p1 = commit(t, ctx, r, map[string]string{"f": "p1"}, []oid.Oid{a})
	p2 = commit(t, ctx, r, map[string]string{"f": "p2"}, []oid.Oid{p1})

	require.NoError(t, m.NewAnchor(ctx, "base", a))
	require.NoError(t, m.NewSeries(ctx, "feat", "base"))
	series, err := m.Rules().Series("feat")
	require.NoError(t, err)
	series.Patches = []oid.Oid{p1, p2}
	return a, p1, p2
}

func TestBuildAndGotoSetsFocus(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	_, _, _ = setupFeatSeries(t, ctx, r, m)

	result, err := m.Build(ctx, "feat")
	require.NoError(t, err)

	require.NoError(t, m.GotoRule(ctx, "feat"))
	focus := m.Focus()
	require.NotNil(t, focus)
	require.Equal(t, result, focus.Id)
	require.Equal(t, "feat", focus.Path.Name)
}

func TestCommitOntoFocusAppendsPatch(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	setupFeatSeries(t, ctx, r, m)

	_, err = m.Build(ctx, "feat")
	require.NoError(t, err)
	require.NoError(t, m.GotoRule(ctx, "feat"))

	r.WriteFile("g", []byte("new"))
	require.NoError(t, m.CommitOntoFocus(ctx, "add g", true, nil))

	series, err := m.Rules().Series("feat")
	require.NoError(t, err)
	require.Len(t, series.Patches, 3)

	focus := m.Focus()
	idx, ok := focus.Path.At()
	require.True(t, ok)
	require.Equal(t, 2, idx)
}

func TestCommitOntoFocusRejectsEmptyMessage(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	setupFeatSeries(t, ctx, r, m)
	_, err = m.Build(ctx, "feat")
	require.NoError(t, err)
	require.NoError(t, m.GotoRule(ctx, "feat"))

	err = m.CommitOntoFocus(ctx, "", true, nil)
	require.Error(t, err)
	var empty *errs.EmptyMessage
	require.ErrorAs(t, err, &empty)
}

func TestCommitOntoFocusNoFocusIsNoOp(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	require.NoError(t, m.CommitOntoFocus(ctx, "msg", true, nil))
}

func TestAmendFocusRewritesPatch(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	setupFeatSeries(t, ctx, r, m)
	_, err = m.Build(ctx, "feat")
	require.NoError(t, err)
	require.NoError(t, m.GotoRule(ctx, "feat"))

	before := m.Focus().Id
	r.WriteFile("f", []byte("p2-amended"))
	require.NoError(t, m.AmendFocus(ctx, true, nil))
	require.NotEqual(t, before, m.Focus().Id)

	series, err := m.Rules().Series("feat")
	require.NoError(t, err)
	require.Equal(t, m.Focus().Id, series.Patches[1])
}

func TestFocusClearedWhenHeadDiverges(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	setupFeatSeries(t, ctx, r, m)
	_, err = m.Build(ctx, "feat")
	require.NoError(t, err)
	require.NoError(t, m.GotoRule(ctx, "feat"))
	require.NotNil(t, m.Focus())

	other := commit(t, ctx, r, map[string]string{"f": "unrelated"}, nil)
	require.NoError(t, r.SetHeadDetached(ctx, other))

	reloaded, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	require.Nil(t, reloaded.Focus())
}

func TestUndoRedo(t *testing.T) {
	ctx := context.Background()
	r := repotest.New()
	m, err := Load(ctx, r, testRefs())
	require.NoError(t, err)
	setupFeatSeries(t, ctx, r, m)
	_, err = m.Build(ctx, "feat")
	require.NoError(t, err)
	require.NoError(t, m.GotoRule(ctx, "feat"))

	originalFocus := m.Focus().Id
	require.NoError(t, m.Undo(ctx))
	require.NoError(t, m.Redo(ctx))
	require.Equal(t, originalFocus, m.Focus().Id)
}
