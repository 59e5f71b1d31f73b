package buildengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/opcache"
	"github.com/vapourismo/unstacked/internal/repo"
	"github.com/vapourismo/unstacked/internal/repo/repotest"
	"github.com/vapourismo/unstacked/internal/rules"
)

func commit(t *testing.T, ctx context.Context, r *repotest.FakeRepo, message string, files map[string]string, parents []oid.Oid) oid.Oid {
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
	id, err := r.CreateCommit(ctx, sig, sig, message, tree, parents)
	require.NoError(t, err)
	return id
}

// divergentPatches builds an anchor commit plus two patches that live on a
// separate root, so the derived cherry-picked commits get new ids instead
// of collapsing back onto the originals.
func divergentPatches(t *testing.T, ctx context.Context, fake *repotest.FakeRepo) (a, p1, p2 oid.Oid) {
	t.Helper()
	a = commit(t, ctx, fake, "base", map[string]string{"shared": "base"}, nil)
	o := commit(t, ctx, fake, "other-root", map[string]string{"shared": "base"}, nil)
	p1 = commit(t, ctx, fake, "p1", map[string]string{"shared": "base", "f1": "one"}, []oid.Oid{o})
	p2 = commit(t, ctx, fake, "p2", map[string]string{"shared": "base", "f1": "one", "f2": "two"}, []oid.Oid{p1})
	return a, p1, p2
}

func TestBuildSeriesAppliesPatchesInOrder(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	a, p1, p2 := divergentPatches(t, ctx, fake)

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))
	book.SetRule("feat", rules.NewSeries("base", []oid.Oid{p1, p2}))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	result, err := engine.Build(ctx, book, "feat")
	require.NoError(t, err)

	series, err := book.Series("feat")
	require.NoError(t, err)
	require.NotEqual(t, p1, series.Patches[0], "patches[0] should be rewritten to its derived commit")
	require.NotEqual(t, p2, series.Patches[1], "patches[1] should be rewritten to its derived commit")
	require.Equal(t, result, series.Patches[1])

	c1, err := fake.FindCommit(ctx, series.Patches[0].String())
	require.NoError(t, err)
	require.Equal(t, []oid.Oid{a}, c1.Parents)
	c2, err := fake.FindCommit(ctx, series.Patches[1].String())
	require.NoError(t, err)
	require.Equal(t, []oid.Oid{series.Patches[0]}, c2.Parents)

	ruleOid, found, err := fake.Reference(ctx, "refs/unstacked/rule/feat")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, result, ruleOid)
}

func TestSecondBuildIsAllCacheHits(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	a, p1, p2 := divergentPatches(t, ctx, fake)

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))
	book.SetRule("feat", rules.NewSeries("base", []oid.Oid{p1, p2}))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	first, err := engine.Build(ctx, book, "feat")
	require.NoError(t, err)
	entriesAfterFirst := cache.Len()

	second, err := engine.Build(ctx, book, "feat")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, entriesAfterFirst, cache.Len(), "no new cache entries on a repeat build")
}

func TestBuildPartialRewritesPrefixOnConflict(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	o := commit(t, ctx, fake, "other-root", map[string]string{"f": "orig"}, nil)
	a := commit(t, ctx, fake, "base", map[string]string{"f": "ours"}, nil)
	pGood := commit(t, ctx, fake, "good", map[string]string{"f": "orig", "g": "g"}, []oid.Oid{o})
	pBad := commit(t, ctx, fake, "bad", map[string]string{"f": "theirs"}, []oid.Oid{o})

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))
	book.SetRule("feat", rules.NewSeries("base", []oid.Oid{pGood, pBad}))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	_, err := engine.Build(ctx, book, "feat")
	require.Error(t, err)
	var conflict *errs.PatchConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "feat[1]", conflict.Path)

	series, err := book.Series("feat")
	require.NoError(t, err)
	require.NotEqual(t, pGood, series.Patches[0], "the clean prefix stays rewritten")
	require.Equal(t, pBad, series.Patches[1], "the conflicting patch is untouched")

	_, found, err := fake.Reference(ctx, "refs/unstacked/rule/feat")
	require.NoError(t, err)
	require.False(t, found, "no rule reference after a failed build")
}

func TestBuildPathStopsAtIndex(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	a, p1, p2 := divergentPatches(t, ctx, fake)

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))
	book.SetRule("feat", rules.NewSeries("base", []oid.Oid{p1, p2}))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	zero := 0
	mid, err := engine.BuildPath(ctx, book, "feat", &zero)
	require.NoError(t, err)

	series, err := book.Series("feat")
	require.NoError(t, err)
	require.Equal(t, mid, series.Patches[0])
	require.Equal(t, p2, series.Patches[1], "patches beyond the requested index are untouched")

	_, found, err := fake.Reference(ctx, "refs/unstacked/rule/feat")
	require.NoError(t, err)
	require.False(t, found, "a non-top partial build must not move the rule reference")

	parentOnly, err := engine.BuildPath(ctx, book, "feat", nil)
	require.NoError(t, err)
	require.Equal(t, a, parentOnly)
}

func TestBuildPathRejectsAnchor(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	a := commit(t, ctx, fake, "base", map[string]string{"f": "base"}, nil)

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	_, err := engine.BuildPath(ctx, book, "base", nil)
	require.Error(t, err)
}

func TestCycleDetection(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	book := rules.New()
	book.SetRule("a", rules.NewSeries("b", nil))
	book.SetRule("b", rules.NewSeries("a", nil))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	_, err := engine.Build(ctx, book, "a")
	require.Error(t, err)
	var cycle *errs.Cycle
	require.ErrorAs(t, err, &cycle)
}

func TestBuildAll(t *testing.T) {
	ctx := context.Background()
	fake := repotest.New()
	a, p1, _ := divergentPatches(t, ctx, fake)

	book := rules.New()
	book.SetRule("base", rules.NewAnchor(a))
	book.SetRule("feat", rules.NewSeries("base", []oid.Oid{p1}))

	cache := opcache.Open(ctx, fake, "refs/unstacked/cache")
	engine := New(fake, cache, "refs/unstacked/rule/")

	results, err := engine.BuildAll(ctx, book)
	require.NoError(t, err)
	require.Equal(t, a, results["base"])
	require.Contains(t, results, "feat")
}

func TestIsTopPatch(t *testing.T) {
	require.True(t, IsTopPatch(nil, 3))
	two := 2
	require.True(t, IsTopPatch(&two, 3))
	one := 1
	require.False(t, IsTopPatch(&one, 3))
}
