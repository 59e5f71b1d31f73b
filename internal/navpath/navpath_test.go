package navpath

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/rules"
)

func patchOids(n int) []oid.Oid {
	out := make([]oid.Oid, n)
	for i := range out {
		out[i] = oid.New(fmt.Sprintf("%040d", i+1))
	}
	return out
}

func TestFromRuleRejectsAnchor(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	_, err := FromRule(book, "base", Last)
	require.Error(t, err)
}

func TestFromRuleEmptySeriesHasNoIndex(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("feat", rules.NewSeries("base", nil))
	p, err := FromRule(book, "feat", First)
	require.NoError(t, err)
	_, ok := p.At()
	require.False(t, ok)
}

func TestNextRoundTripFirstToLast(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("feat", rules.NewSeries("base", patchOids(3)))

	p, err := FromRule(book, "feat", First)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		p, err = p.Next(book)
		require.NoError(t, err)
	}
	last, err := FromRule(book, "feat", Last)
	require.NoError(t, err)
	require.Equal(t, last, p)
}

func TestNavigationInverse(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("feat", rules.NewSeries("base", patchOids(3)))

	p, err := FromRule(book, "feat", First)
	require.NoError(t, err)
	next, err := p.Next(book)
	require.NoError(t, err)
	back, err := next.Parent(book)
	require.NoError(t, err)
	require.Equal(t, p, back)
}

func TestAmbiguousSuccessor(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("trunk", rules.NewSeries("base", nil))
	book.SetRule("a", rules.NewSeries("trunk", nil))
	book.SetRule("b", rules.NewSeries("trunk", nil))

	p, err := FromRule(book, "a", Last)
	require.NoError(t, err)
	back, err := p.Parent(book)
	require.NoError(t, err)

	_, err = back.Next(book)
	require.Error(t, err)
	var ambiguous *errs.Ambiguous
	require.ErrorAs(t, err, &ambiguous)
}

func TestNextNoSuccessorIsNoOp(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("feat", rules.NewSeries("base", patchOids(1)))

	p, err := FromRule(book, "feat", Last)
	require.NoError(t, err)
	next, err := p.Next(book)
	require.NoError(t, err)
	require.Equal(t, p, next)
}

func TestSingleDependentEntersAtFirst(t *testing.T) {
	book := rules.New()
	book.SetRule("base", rules.NewAnchor(oid.Zero))
	book.SetRule("feat", rules.NewSeries("base", nil))
	book.SetRule("onward", rules.NewSeries("feat", patchOids(2)))

	p, err := FromRule(book, "feat", Last)
	require.NoError(t, err)
	next, err := p.Next(book)
	require.NoError(t, err)
	require.Equal(t, "onward", next.Name)
	idx, ok := next.At()
	require.True(t, ok)
	require.Equal(t, 0, idx)
}
