// Package repotest provides an in-memory Repository fake for unit tests of
// the packages that sit above internal/repo (kvstore, opcache, rules,
// buildengine, navpath, worktree, model), so those tests exercise the
// Repository Façade contract without shelling out to a real git binary or
// touching a temp directory. Content-addressing uses sha1 over a small
// canonical encoding per object kind, giving the same identity-equality
// and determinism properties as a real Oid.
package repotest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
)

// FakeRepo is a minimal, fully in-memory Repository implementation.
type FakeRepo struct {
	blobs   map[oid.Oid][]byte
	trees   map[oid.Oid]map[string]repo.TreeEntry
	commits map[oid.Oid]*repo.Commit
	refs    map[string]oid.Oid

	headRef      string
	headDetached oid.Oid

	index   map[string][]byte
	workdir map[string][]byte

	sig repo.Signature
}

// New returns an empty fake repository with HEAD on refs/heads/main.
func New() *FakeRepo {
	return &FakeRepo{
		blobs:   map[oid.Oid][]byte{},
		trees:   map[oid.Oid]map[string]repo.TreeEntry{},
		commits: map[oid.Oid]*repo.Commit{},
		refs:    map[string]oid.Oid{},
		headRef: "refs/heads/main",
		index:   map[string][]byte{},
		workdir: map[string][]byte{},
		sig:     repo.Signature{Name: "Test User", Email: "test@example.com"},
	}
}

func hashBytes(kind string, data []byte) oid.Oid {
	h := sha1.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	sum := h.Sum(nil)
	var id oid.Oid
	copy(id[:], sum)
	return id
}

func (r *FakeRepo) Root() string { return "/fake" }

// --- blobs & trees ---

func (r *FakeRepo) WriteBlob(ctx context.Context, content []byte) (oid.Oid, error) {
	id := hashBytes("blob", content)
	r.blobs[id] = append([]byte{}, content...)
	return id, nil
}

func (r *FakeRepo) FindBlob(ctx context.Context, id oid.Oid) ([]byte, error) {
	b, ok := r.blobs[id]
	if !ok {
		return nil, &errs.NotFound{Kind: "blob", Name: id.String()}
	}
	return append([]byte{}, b...), nil
}

func (r *FakeRepo) WriteTree(ctx context.Context, entries map[string]repo.TreeEntry) (oid.Oid, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	for _, name := range names {
		e := entries[name]
		fmt.Fprintf(&buf, "%s %s %s\n", e.Mode, e.Oid.String(), name)
	}
	id := hashBytes("tree", buf.Bytes())
	copied := make(map[string]repo.TreeEntry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	r.trees[id] = copied
	return id, nil
}

func (r *FakeRepo) FindTree(ctx context.Context, id oid.Oid) (map[string]repo.TreeEntry, error) {
	if id.IsZero() {
		return map[string]repo.TreeEntry{}, nil
	}
	entries, ok := r.trees[id]
	if !ok {
		return nil, &errs.NotFound{Kind: "tree", Name: id.String()}
	}
	copied := make(map[string]repo.TreeEntry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return copied, nil
}

// flatten resolves a tree Oid into a full-path -> content map.
func (r *FakeRepo) flatten(ctx context.Context, id oid.Oid) (map[string][]byte, error) {
	out := map[string][]byte{}
	if id.IsZero() {
		return out, nil
	}
	entries, err := r.FindTree(ctx, id)
	if err != nil {
		return nil, err
	}
	for name, e := range entries {
		if e.IsTree() {
			sub, err := r.flatten(ctx, e.Oid)
			if err != nil {
				return nil, err
			}
			for k, v := range sub {
				out[name+"/"+k] = v
			}
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

// buildTree is the inverse of flatten: it groups a full-path -> content
// map by top-level segment and writes trees bottom-up.
func (r *FakeRepo) buildTree(ctx context.Context, flat map[string][]byte) (oid.Oid, error) {
	type group struct {
		blob  []byte
		isDir bool
		sub   map[string][]byte
	}
	groups := map[string]*group{}
	for path, content := range flat {
		slash := strings.IndexByte(path, '/')
		if slash < 0 {
			groups[path] = &group{blob: content}
			continue
		}
		top, rest := path[:slash], path[slash+1:]
		g, ok := groups[top]
		if !ok {
			g = &group{isDir: true, sub: map[string][]byte{}}
			groups[top] = g
		}
		g.isDir = true
		g.sub[rest] = content
	}
	entries := map[string]repo.TreeEntry{}
	for name, g := range groups {
		if g.isDir {
			id, err := r.buildTree(ctx, g.sub)
			if err != nil {
				return oid.Zero, err
			}
			entries[name] = repo.TreeEntry{Mode: "040000", Oid: id}
			continue
		}
		id, err := r.WriteBlob(ctx, g.blob)
		if err != nil {
			return oid.Zero, err
		}
		entries[name] = repo.TreeEntry{Mode: "100644", Oid: id}
	}
	return r.WriteTree(ctx, entries)
}

// --- commits ---

func (r *FakeRepo) CreateCommit(ctx context.Context, author, committer repo.Signature, message string, tree oid.Oid, parents []oid.Oid) (oid.Oid, error) {
	return r.createCommit(ctx, author, committer, message, tree, parents, nil)
}

func (r *FakeRepo) CreateCommitSigned(ctx context.Context, author, committer repo.Signature, message string, tree oid.Oid, parents []oid.Oid, sign repo.Signer) (oid.Oid, error) {
	return r.createCommit(ctx, author, committer, message, tree, parents, sign)
}

func (r *FakeRepo) createCommit(ctx context.Context, author, committer repo.Signature, message string, tree oid.Oid, parents []oid.Oid, sign repo.Signer) (oid.Oid, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", tree.String())
	for _, p := range parents {
		fmt.Fprintf(&buf, "parent %s\n", p.String())
	}
	fmt.Fprintf(&buf, "author %s <%s>\n", author.Name, author.Email)
	fmt.Fprintf(&buf, "committer %s <%s>\n\n", committer.Name, committer.Email)
	buf.WriteString(message)
	if sign != nil {
		sig, err := sign(buf.Bytes())
		if err != nil {
			return oid.Zero, err
		}
		buf.WriteString("\x00sig:")
		buf.Write(sig)
	}
	id := hashBytes("commit", buf.Bytes())
	r.commits[id] = &repo.Commit{
		Oid: id, Tree: tree, Parents: append([]oid.Oid{}, parents...),
		Author: author, Committer: committer, Message: message,
	}
	return id, nil
}

func (r *FakeRepo) FindCommit(ctx context.Context, revOrOid string) (*repo.Commit, error) {
	if revOrOid == "HEAD" {
		return r.HeadCommit(ctx)
	}
	if id, err := oid.NewEx(revOrOid); err == nil {
		if c, ok := r.commits[id]; ok {
			cp := *c
			return &cp, nil
		}
	}
	if id, ok := r.refs[revOrOid]; ok {
		if c, ok := r.commits[id]; ok {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &errs.NotFound{Kind: "commit", Name: revOrOid}
}

func (r *FakeRepo) HeadCommit(ctx context.Context) (*repo.Commit, error) {
	ref, detached, isDetached, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	var id oid.Oid
	if isDetached {
		id = detached
	} else {
		found := false
		id, found = r.refs[ref]
		if !found {
			return nil, &errs.NotFound{Kind: "reference", Name: ref}
		}
	}
	c, ok := r.commits[id]
	if !ok {
		return nil, &errs.NotFound{Kind: "commit", Name: id.String()}
	}
	cp := *c
	return &cp, nil
}

func (r *FakeRepo) Head(ctx context.Context) (ref string, detached oid.Oid, isDetached bool, err error) {
	if r.headRef == "" {
		return "", r.headDetached, true, nil
	}
	return r.headRef, oid.Zero, false, nil
}

func (r *FakeRepo) SetHeadDetached(ctx context.Context, id oid.Oid) error {
	r.headRef = ""
	r.headDetached = id
	return nil
}

func (r *FakeRepo) Reset(ctx context.Context, id oid.Oid, mode repo.ResetMode) error {
	if r.headRef != "" {
		r.refs[r.headRef] = id
	} else {
		r.headDetached = id
	}
	if mode == repo.ResetMixed || mode == repo.ResetHard {
		c, ok := r.commits[id]
		if !ok {
			return &errs.NotFound{Kind: "commit", Name: id.String()}
		}
		flat, err := r.flatten(ctx, c.Tree)
		if err != nil {
			return err
		}
		r.index = flat
		if mode == repo.ResetHard {
			workdir := map[string][]byte{}
			for k, v := range flat {
				workdir[k] = v
			}
			r.workdir = workdir
		}
	}
	return nil
}

// --- merge / diff / apply ---

func mergeOne(basePresent bool, base []byte, oursPresent bool, ours []byte, theirsPresent bool, theirs []byte) (present bool, result []byte, conflict bool) {
	if oursPresent == theirsPresent && (!oursPresent || bytes.Equal(ours, theirs)) {
		return oursPresent, ours, false
	}
	if basePresent == oursPresent && (!basePresent || bytes.Equal(base, ours)) {
		return theirsPresent, theirs, false
	}
	if basePresent == theirsPresent && (!basePresent || bytes.Equal(base, theirs)) {
		return oursPresent, ours, false
	}
	return false, nil, true
}

func (r *FakeRepo) MergeTrees(ctx context.Context, base, ours, theirs oid.Oid) (oid.Oid, []repo.PathChange, error) {
	baseFlat, err := r.flatten(ctx, base)
	if err != nil {
		return oid.Zero, nil, err
	}
	oursFlat, err := r.flatten(ctx, ours)
	if err != nil {
		return oid.Zero, nil, err
	}
	theirsFlat, err := r.flatten(ctx, theirs)
	if err != nil {
		return oid.Zero, nil, err
	}
	paths := map[string]bool{}
	for p := range baseFlat {
		paths[p] = true
	}
	for p := range oursFlat {
		paths[p] = true
	}
	for p := range theirsFlat {
		paths[p] = true
	}
	result := map[string][]byte{}
	var conflicts []repo.PathChange
	for p := range paths {
		b, bok := baseFlat[p]
		o, ook := oursFlat[p]
		t, tok := theirsFlat[p]
		present, val, conflict := mergeOne(bok, b, ook, o, tok, t)
		if conflict {
			conflicts = append(conflicts, repo.PathChange{Path: p, Status: repo.Conflict})
			continue
		}
		if present {
			result[p] = val
		}
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
		return oid.Zero, conflicts, nil
	}
	treeOid, err := r.buildTree(ctx, result)
	if err != nil {
		return oid.Zero, nil, err
	}
	return treeOid, nil, nil
}

func (r *FakeRepo) ApplyToTree(ctx context.Context, tree oid.Oid, diff repo.Diff) (oid.Oid, []repo.PathChange, error) {
	flat, err := r.flatten(ctx, tree)
	if err != nil {
		return oid.Zero, nil, err
	}
	var conflicts []repo.PathChange
	for _, change := range diff {
		current, found := flat[change.Path]
		var currentOid oid.Oid
		if found {
			currentOid = hashBytes("blob", current)
		}
		matches := (found && currentOid == change.FromOid) || (!found && change.FromOid.IsZero())
		if !matches {
			conflicts = append(conflicts, repo.PathChange{Path: change.Path, Status: repo.Conflict})
			continue
		}
		if change.Status == repo.Deleted {
			delete(flat, change.Path)
			continue
		}
		content, err := r.FindBlob(ctx, change.ToOid)
		if err != nil {
			return oid.Zero, nil, err
		}
		flat[change.Path] = content
	}
	if len(conflicts) > 0 {
		return oid.Zero, conflicts, nil
	}
	treeOid, err := r.buildTree(ctx, flat)
	if err != nil {
		return oid.Zero, nil, err
	}
	return treeOid, nil, nil
}

func (r *FakeRepo) diffFlats(a, b map[string][]byte) repo.Diff {
	paths := map[string]bool{}
	for p := range a {
		paths[p] = true
	}
	for p := range b {
		paths[p] = true
	}
	names := make([]string, 0, len(paths))
	for p := range paths {
		names = append(names, p)
	}
	sort.Strings(names)
	var d repo.Diff
	for _, p := range names {
		av, aok := a[p]
		bv, bok := b[p]
		if aok && bok && bytes.Equal(av, bv) {
			continue
		}
		change := repo.PathChange{Path: p}
		switch {
		case !aok && bok:
			change.Status = repo.Added
			change.ToOid = hashBytes("blob", bv)
			change.ToMode = "100644"
		case aok && !bok:
			change.Status = repo.Deleted
			change.FromOid = hashBytes("blob", av)
			change.FromMode = "100644"
		default:
			change.Status = repo.Modified
			change.FromOid = hashBytes("blob", av)
			change.FromMode = "100644"
			change.ToOid = hashBytes("blob", bv)
			change.ToMode = "100644"
		}
		d = append(d, change)
	}
	return d
}

func (r *FakeRepo) DiffTreeToTree(ctx context.Context, a, b oid.Oid) (repo.Diff, error) {
	af, err := r.flatten(ctx, a)
	if err != nil {
		return nil, err
	}
	bf, err := r.flatten(ctx, b)
	if err != nil {
		return nil, err
	}
	return r.diffFlats(af, bf), nil
}

func (r *FakeRepo) DiffTreeToIndex(ctx context.Context, tree oid.Oid) (repo.Diff, error) {
	tf, err := r.flatten(ctx, tree)
	if err != nil {
		return nil, err
	}
	return r.diffFlats(tf, r.index), nil
}

func (r *FakeRepo) DiffTreeToWorkdir(ctx context.Context, tree oid.Oid) (repo.Diff, error) {
	tf, err := r.flatten(ctx, tree)
	if err != nil {
		return nil, err
	}
	return r.diffFlats(tf, r.workdir), nil
}

func (r *FakeRepo) StagedTree(ctx context.Context) (oid.Oid, error) {
	return r.buildTree(ctx, r.index)
}

func (r *FakeRepo) WorkdirTree(ctx context.Context) (oid.Oid, error) {
	return r.buildTree(ctx, r.workdir)
}

func (r *FakeRepo) CheckoutTree(ctx context.Context, tree oid.Oid) error {
	flat, err := r.flatten(ctx, tree)
	if err != nil {
		return err
	}
	r.workdir = flat
	idx := map[string][]byte{}
	for k, v := range flat {
		idx[k] = v
	}
	r.index = idx
	return nil
}

func (r *FakeRepo) ReadTreeIntoIndex(ctx context.Context, tree oid.Oid) error {
	flat, err := r.flatten(ctx, tree)
	if err != nil {
		return err
	}
	r.index = flat
	return nil
}

func (r *FakeRepo) CherryPick(ctx context.Context, onto, cherry oid.Oid, sign repo.Signer) (oid.Oid, []repo.PathChange, error) {
	cherryCommit, ok := r.commits[cherry]
	if !ok {
		return oid.Zero, nil, &errs.NotFound{Kind: "commit", Name: cherry.String()}
	}
	ontoCommit, ok := r.commits[onto]
	if !ok {
		return oid.Zero, nil, &errs.NotFound{Kind: "commit", Name: onto.String()}
	}
	base := oid.Zero
	if len(cherryCommit.Parents) > 0 {
		parentCommit, ok := r.commits[cherryCommit.Parents[0]]
		if !ok {
			return oid.Zero, nil, &errs.NotFound{Kind: "commit", Name: cherryCommit.Parents[0].String()}
		}
		base = parentCommit.Tree
	}
	newTree, conflicts, err := r.MergeTrees(ctx, base, ontoCommit.Tree, cherryCommit.Tree)
	if err != nil {
		return oid.Zero, nil, err
	}
	if len(conflicts) > 0 {
		return oid.Zero, conflicts, nil
	}
	parents := []oid.Oid{onto}
	if sign != nil {
		id, err := r.CreateCommitSigned(ctx, cherryCommit.Author, cherryCommit.Committer, cherryCommit.Message, newTree, parents, sign)
		return id, nil, err
	}
	id, err := r.CreateCommit(ctx, cherryCommit.Author, cherryCommit.Committer, cherryCommit.Message, newTree, parents)
	return id, nil, err
}

// --- references / signature ---

func (r *FakeRepo) Reference(ctx context.Context, name string) (oid.Oid, bool, error) {
	id, ok := r.refs[name]
	return id, ok, nil
}

func (r *FakeRepo) SetReference(ctx context.Context, name string, id oid.Oid, logMessage string) error {
	r.refs[name] = id
	return nil
}

func (r *FakeRepo) Signature(ctx context.Context) (repo.Signature, error) {
	return r.sig, nil
}

// --- test setup helpers, not part of the Repository interface ---

// WriteFile stages content directly into both the index and the workdir,
// as if the user had written and `git add`-ed a file.
func (r *FakeRepo) WriteFile(path string, content []byte) {
	r.index[path] = content
	r.workdir[path] = content
}

// WriteWorkdirOnly stages content into the workdir only, leaving the
// index untouched (an unstaged change).
func (r *FakeRepo) WriteWorkdirOnly(path string, content []byte) {
	r.workdir[path] = content
}

// Checkout exposes CheckoutTree without a context argument for setup code.
func (r *FakeRepo) Checkout(tree oid.Oid) { _ = r.CheckoutTree(context.Background(), tree) }
