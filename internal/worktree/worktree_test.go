package worktree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/repo/repotest"
)

func makeCommit(t *testing.T, ctx context.Context, r *repotest.FakeRepo, files map[string]string, parents []oid.Oid) *repo.Commit {
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
	c, err := r.FindCommit(ctx, id.String())
	require.NoError(t, err)
	return c
}

func TestReconcileCleanWorktreeAdoptsTarget(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	head := makeCommit(t, ctx, fake, map[string]string{"f": "base"}, nil)
	fake.Reset(ctx, head.Oid, repo.ResetHard)
	target := makeCommit(t, ctx, fake, map[string]string{"f": "base", "g": "added"}, nil)

	w := New(fake)
	require.NoError(t, w.reconcile(ctx, head, target))

	_, detached, isDetached, err := fake.Head(ctx)
	require.NoError(t, err)
	require.True(t, isDetached, "reconcile moves HEAD by detaching onto the target")
	require.Equal(t, target.Oid, detached)

	diff, err := fake.DiffTreeToWorkdir(ctx, target.Tree)
	require.NoError(t, err)
	require.Empty(t, diff)
}

func TestReconcilePreservesStagedChange(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	head := makeCommit(t, ctx, fake, map[string]string{"f": "base"}, nil)
	fake.Reset(ctx, head.Oid, repo.ResetHard)
	fake.WriteFile("f", []byte("edited"))
	target := makeCommit(t, ctx, fake, map[string]string{"f": "base", "g": "added"}, nil)

	w := New(fake)
	require.NoError(t, w.reconcile(ctx, head, target))

	stagedTree, err := fake.StagedTree(ctx)
	require.NoError(t, err)
	content, err := func() ([]byte, error) {
		entries, err := fake.FindTree(ctx, stagedTree)
		require.NoError(t, err)
		return fake.FindBlob(ctx, entries["f"].Oid)
	}()
	require.NoError(t, err)
	require.Equal(t, "edited", string(content))
}

func TestReconcileConflictLeavesHeadUnchanged(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	head := makeCommit(t, ctx, fake, map[string]string{"f": "base"}, nil)
	fake.Reset(ctx, head.Oid, repo.ResetHard)
	fake.WriteFile("f", []byte("local-edit"))
	target := makeCommit(t, ctx, fake, map[string]string{"f": "target-edit"}, nil)

	w := New(fake)
	err := w.reconcile(ctx, head, target)
	require.Error(t, err)
	var conflict *errs.IndexConflicts
	require.ErrorAs(t, err, &conflict)

	ref, _, _, err := fake.Head(ctx)
	require.NoError(t, err)
	currentHead, _, err := fake.Reference(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, head.Oid, currentHead)
}
