// Package kvstore implements a small structured key/value overlay on the
// repository's object database: a rolling reference's latest commit tree
// encodes path-segmented JSON values, with interior tree entries acting
// as path segments and leaf blobs as values. The parent chain preserves
// history but is never traversed at read time.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
)

// node is either a leaf (raw JSON bytes) or an interior map keyed by path
// segment. Interior nodes are represented as map[string]node so rebuilding
// a path bottom-up is a matter of walking back down the same map chain.
type node interface{}

// Store is an in-memory snapshot of the KV tree plus enough bookkeeping to
// write a new commit on top of whatever was loaded.
type Store struct {
	repo   repo.Repository
	ref    string
	root   map[string]node
	parent oid.Oid
}

// Open loads the store from ref, or initialises an empty in-memory tree
// with no parent commit if the reference does not yet exist.
func Open(ctx context.Context, r repo.Repository, ref string) (*Store, error) {
	id, found, err := r.Reference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Store{repo: r, ref: ref, root: map[string]node{}}, nil
	}
	commit, err := r.FindCommit(ctx, id.String())
	if err != nil {
		return nil, err
	}
	root, err := loadTree(ctx, r, commit.Tree)
	if err != nil {
		return nil, err
	}
	return &Store{repo: r, ref: ref, root: root, parent: id}, nil
}

func loadTree(ctx context.Context, r repo.Repository, tree oid.Oid) (map[string]node, error) {
	entries, err := r.FindTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	out := make(map[string]node, len(entries))
	for name, e := range entries {
		if e.IsTree() {
			sub, err := loadTree(ctx, r, e.Oid)
			if err != nil {
				return nil, err
			}
			out[name] = sub
			continue
		}
		blob, err := r.FindBlob(ctx, e.Oid)
		if err != nil {
			return nil, err
		}
		out[name] = blob
	}
	return out, nil
}

func pathKey(path []string) string { return strings.Join(path, "/") }

// Get walks the in-memory tree segment by segment and JSON-decodes the
// blob at the final segment into out.
func (s *Store) Get(path []string, out interface{}) error {
	if len(path) == 0 {
		return &errs.NotFound{Kind: "kv-path", Name: "<empty>"}
	}
	var cur map[string]node = s.root
	for i, seg := range path {
		val, ok := cur[seg]
		if !ok {
			return &errs.NotFound{Kind: "kv-path", Name: pathKey(path)}
		}
		if i == len(path)-1 {
			blob, ok := val.([]byte)
			if !ok {
				return &errs.TypeMismatch{Detail: fmt.Sprintf("kv path %s addresses a subtree, not a value", pathKey(path))}
			}
			if err := json.Unmarshal(blob, out); err != nil {
				return &errs.Decode{Context: "kv " + pathKey(path), Cause: err}
			}
			return nil
		}
		// A leaf in an interior position means the full path does not
		// exist, not that the caller used the wrong type.
		next, ok := val.(map[string]node)
		if !ok {
			return &errs.NotFound{Kind: "kv-path", Name: pathKey(path)}
		}
		cur = next
	}
	return nil
}

// Put JSON-encodes value and rebuilds the tree entries from the leaf up to
// the root, replacing whatever previously occupied path (blob or subtree).
func (s *Store) Put(path []string, value interface{}) error {
	if len(path) == 0 {
		return fmt.Errorf("kvstore: put: empty path")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return &errs.Encode{Context: "kv " + pathKey(path), Cause: err}
	}
	cur := s.root
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]node)
		if !ok {
			next = map[string]node{}
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = []byte(data)
	return nil
}

// Write commits the current in-memory tree and moves ref to point at it,
// chaining onto the previously loaded commit (if any) as parent.
func (s *Store) Write(ctx context.Context) (oid.Oid, error) {
	treeOid, err := writeNode(ctx, s.repo, s.root)
	if err != nil {
		return oid.Zero, err
	}
	sig, err := s.repo.Signature(ctx)
	if err != nil {
		return oid.Zero, err
	}
	var parents []oid.Oid
	if !s.parent.IsZero() {
		parents = []oid.Oid{s.parent}
	}
	commitOid, err := s.repo.CreateCommit(ctx, sig, sig, "Update KV Store", treeOid, parents)
	if err != nil {
		return oid.Zero, err
	}
	if err := s.repo.SetReference(ctx, s.ref, commitOid, "Update KV Store"); err != nil {
		return oid.Zero, err
	}
	s.parent = commitOid
	return commitOid, nil
}

func writeNode(ctx context.Context, r repo.Repository, m map[string]node) (oid.Oid, error) {
	entries := make(map[string]repo.TreeEntry, len(m))
	for name, v := range m {
		switch val := v.(type) {
		case []byte:
			id, err := r.WriteBlob(ctx, val)
			if err != nil {
				return oid.Zero, err
			}
			entries[name] = repo.TreeEntry{Mode: "100644", Oid: id}
		case map[string]node:
			id, err := writeNode(ctx, r, val)
			if err != nil {
				return oid.Zero, err
			}
			entries[name] = repo.TreeEntry{Mode: "040000", Oid: id}
		default:
			return oid.Zero, fmt.Errorf("kvstore: unexpected node type %T for %q", v, name)
		}
	}
	return r.WriteTree(ctx, entries)
}
