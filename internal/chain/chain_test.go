package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/repo/repotest"
)

func commit(t *testing.T, ctx context.Context, r *repotest.FakeRepo, files map[string]string, parents []oid.Oid) oid.Oid {
	t.Helper()
	entries := make(map[string]repo.TreeEntry, len(files))
	for name, content := range files {
		blob, err := r.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries[name] = repo.TreeEntry{Mode: "100644", Oid: blob}
	}
	tree, err := r.WriteTree(ctx, entries)
	require.NoError(t, err)
	sig, err := r.Signature(ctx)
	require.NoError(t, err)
	id, err := r.CreateCommit(ctx, sig, sig, "msg", tree, parents)
	require.NoError(t, err)
	return id
}

func TestCommitRebasesRefsOntoNewBase(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()

	trunk := commit(t, ctx, fake, map[string]string{"trunk": "1"}, nil)
	p1 := commit(t, ctx, fake, map[string]string{"trunk": "1", "a": "a"}, []oid.Oid{trunk})
	p2 := commit(t, ctx, fake, map[string]string{"trunk": "1", "a": "a", "b": "b"}, []oid.Oid{p1})

	newTrunk := commit(t, ctx, fake, map[string]string{"trunk": "2"}, nil)

	require.NoError(t, fake.SetReference(ctx, "refs/heads/base", newTrunk, "test"))
	require.NoError(t, fake.SetReference(ctx, "refs/heads/p1", p1, "test"))
	require.NoError(t, fake.SetReference(ctx, "refs/heads/p2", p2, "test"))

	result, err := Commit(ctx, fake, "refs/heads/base", []string{"refs/heads/p1", "refs/heads/p2"})
	require.NoError(t, err)

	final, err := fake.FindCommit(ctx, result.String())
	require.NoError(t, err)
	require.Len(t, final.Parents, 1)
	rebasedP1, err := fake.FindCommit(ctx, final.Parents[0].String())
	require.NoError(t, err)
	require.Equal(t, []oid.Oid{newTrunk}, rebasedP1.Parents)

	entries, err := fake.FindTree(ctx, final.Tree)
	require.NoError(t, err)
	require.Contains(t, entries, "trunk")
	require.Contains(t, entries, "a")
	require.Contains(t, entries, "b")

	trunkBlob, err := fake.FindBlob(ctx, entries["trunk"].Oid)
	require.NoError(t, err)
	require.Equal(t, "2", string(trunkBlob))
}

func TestCommitRejectsMergeCommits(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()

	base := commit(t, ctx, fake, map[string]string{"f": "1"}, nil)
	other := commit(t, ctx, fake, map[string]string{"f": "2"}, nil)
	merge := commit(t, ctx, fake, map[string]string{"f": "3"}, []oid.Oid{base, other})

	require.NoError(t, fake.SetReference(ctx, "refs/heads/base", base, "test"))
	require.NoError(t, fake.SetReference(ctx, "refs/heads/merge", merge, "test"))

	_, err := Commit(ctx, fake, "refs/heads/base", []string{"refs/heads/merge"})
	require.Error(t, err)
}
