package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vapourismo/unstacked/internal/oid"
)

func TestSeriesAndAnchorAccess(t *testing.T) {
	b := New()
	a := oid.New("1111111111111111111111111111111111111111")
	b.SetRule("base", NewAnchor(a))
	b.SetRule("feat", NewSeries("base", nil))

	s, err := b.Series("feat")
	require.NoError(t, err)
	require.Equal(t, "base", s.Parent)

	_, err = b.Series("base")
	require.Error(t, err)

	r, err := b.Rule("base")
	require.NoError(t, err)
	require.True(t, r.IsAnchor())
	require.Equal(t, a, r.Anchor.Id)
}

func TestRuleNotFound(t *testing.T) {
	b := New()
	_, err := b.Rule("missing")
	require.Error(t, err)
}

func TestFindRuleUse(t *testing.T) {
	b := New()
	b.SetRule("base", NewAnchor(oid.Zero))
	b.SetRule("a", NewSeries("base", nil))
	b.SetRule("b", NewSeries("base", nil))
	require.Equal(t, []string{"a", "b"}, b.FindRuleUse("base"))
	require.Empty(t, b.FindRuleUse("a"))
}

func TestRuleJSONTaggedUnion(t *testing.T) {
	series := NewSeries("base", []oid.Oid{oid.New("2222222222222222222222222222222222222222")})
	data, err := json.Marshal(series)
	require.NoError(t, err)
	require.Contains(t, string(data), `"Series"`)
	require.NotContains(t, string(data), `"Anchor"`)

	var decoded Rule
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Series)
	require.Nil(t, decoded.Anchor)
	require.Equal(t, "base", decoded.Series.Parent)
}

func TestMutatingSeriesThroughPointerIsVisibleInBook(t *testing.T) {
	b := New()
	b.SetRule("feat", NewSeries("base", []oid.Oid{oid.New("3333333333333333333333333333333333333333")}))
	s, err := b.Series("feat")
	require.NoError(t, err)
	s.Patches[0] = oid.New("4444444444444444444444444444444444444444")

	again, err := b.Series("feat")
	require.NoError(t, err)
	require.Equal(t, oid.New("4444444444444444444444444444444444444444"), again.Patches[0])
}
