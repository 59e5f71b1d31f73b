// Package opcache implements the Operation Cache: a persistent
// Action -> Oid map that memoises deterministic repository-mutating
// actions, currently just cherry-pick, so repeated builds of an
// unchanged rule graph are a sequence of cache hits rather than repeated
// git operations. Persisted as a single JSON blob pointed at directly by
// a reference; no commit history is kept.
package opcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vapourismo/unstacked/internal/logging"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
)

// Action is the cache key: a cherry-pick of cherry onto onto, with or
// without signing. The key never includes author/time metadata;
// determinism depends only on these three content-derived values.
type Action struct {
	Onto   oid.Oid
	Cherry oid.Oid
	Sign   bool
}

func (a Action) key() string {
	s := "0"
	if a.Sign {
		s = "1"
	}
	return a.Onto.String() + ":" + a.Cherry.String() + ":" + s
}

type wireFormat struct {
	Items map[string]string `json:"items"`
}

// Cache is the Operation Cache bound to a Repository Façade.
type Cache struct {
	repo  repo.Repository
	ref   string
	items map[string]oid.Oid
}

// Open loads the cache from ref. A missing reference yields an empty
// cache. A malformed blob also yields an empty cache, logging a warning
// rather than failing the caller.
func Open(ctx context.Context, r repo.Repository, ref string) *Cache {
	c := &Cache{repo: r, ref: ref, items: map[string]oid.Oid{}}
	id, found, err := r.Reference(ctx, ref)
	if err != nil || !found {
		return c
	}
	blob, err := r.FindBlob(ctx, id)
	if err != nil {
		logging.Log().WithError(err).Warn("opcache: failed to read cache blob, starting empty")
		return c
	}
	var wire wireFormat
	if err := json.Unmarshal(blob, &wire); err != nil {
		logging.Log().WithError(err).Warn("opcache: malformed cache blob, resetting to empty")
		return c
	}
	for k, hex := range wire.Items {
		resultOid, err := oid.NewEx(hex)
		if err != nil {
			logging.Log().WithField("key", k).Warn("opcache: malformed cache entry, dropping")
			continue
		}
		c.items[k] = resultOid
	}
	return c
}

// CherryPick returns the cached result for (onto, cherry, sign != nil),
// delegating to the Repository Façade on a miss. Conflicts are never
// cached. sign may be nil for an unsigned cherry-pick.
func (c *Cache) CherryPick(ctx context.Context, onto, cherry oid.Oid, sign repo.Signer) (oid.Oid, []repo.PathChange, error) {
	action := Action{Onto: onto, Cherry: cherry, Sign: sign != nil}
	if result, ok := c.items[action.key()]; ok {
		logging.With(logrus.Fields{"onto": onto.Short(12), "cherry": cherry.Short(12)}).Debug("opcache: cherry-pick hit")
		return result, nil, nil
	}
	logging.With(logrus.Fields{"onto": onto.Short(12), "cherry": cherry.Short(12)}).Debug("opcache: cherry-pick miss")
	result, conflicts, err := c.repo.CherryPick(ctx, onto, cherry, sign)
	if err != nil {
		return oid.Zero, nil, err
	}
	if len(conflicts) > 0 {
		return oid.Zero, conflicts, nil
	}
	c.items[action.key()] = result
	if sign == nil {
		// A rebuilt series cherry-picks the derived commit itself back
		// onto the same base. Unsigned, that is an identity operation, so
		// record it now and an unchanged series rebuilds without touching
		// the repository. A signer is not required to be deterministic,
		// so signed picks get no such entry.
		c.items[Action{Onto: onto, Cherry: result, Sign: false}.key()] = result
	}
	return result, nil, nil
}

// Save writes the current cache contents to ref as a single blob.
func (c *Cache) Save(ctx context.Context) error {
	wire := wireFormat{Items: make(map[string]string, len(c.items))}
	for k, v := range c.items {
		wire.Items[k] = v.String()
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("opcache: encode: %w", err)
	}
	blobOid, err := c.repo.WriteBlob(ctx, data)
	if err != nil {
		return err
	}
	return c.repo.SetReference(ctx, c.ref, blobOid, "Update Operation Cache")
}

// Len reports the number of cached entries, mostly useful for tests that
// assert on cache-hit behavior.
func (c *Cache) Len() int { return len(c.items) }
