package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
)

func (r *GitRepository) FindBlob(ctx context.Context, id oid.Oid) ([]byte, error) {
	out, _, err := r.proc.run(ctx, nil, "cat-file", "-p", id.String())
	if err != nil {
		return nil, &errs.NotFound{Kind: "blob", Name: id.String()}
	}
	return out, nil
}

func (r *GitRepository) WriteBlob(ctx context.Context, content []byte) (oid.Oid, error) {
	out, _, err := r.proc.run(ctx, content, "hash-object", "-w", "-t", "blob", "--stdin")
	if err != nil {
		return oid.Zero, err
	}
	return oid.NewEx(trimmedLine(out))
}

func (r *GitRepository) FindTree(ctx context.Context, id oid.Oid) (map[string]TreeEntry, error) {
	out, _, err := r.proc.run(ctx, nil, "ls-tree", id.String())
	if err != nil {
		return nil, &errs.NotFound{Kind: "tree", Name: id.String()}
	}
	entries := map[string]TreeEntry{}
	for _, line := range lines(out) {
		entry, name, err := parseLsTreeLine(line)
		if err != nil {
			return nil, err
		}
		entries[name] = entry
	}
	return entries, nil
}

func parseLsTreeLine(line string) (TreeEntry, string, error) {
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return TreeEntry{}, "", fmt.Errorf("repo: malformed ls-tree line %q", line)
	}
	fields := strings.Fields(line[:tab])
	if len(fields) < 3 {
		return TreeEntry{}, "", fmt.Errorf("repo: malformed ls-tree line %q", line)
	}
	id, err := oid.NewEx(fields[2])
	if err != nil {
		return TreeEntry{}, "", err
	}
	return TreeEntry{Mode: fields[0], Oid: id}, line[tab+1:], nil
}

// treeSortKey implements git's tree entry ordering: names are compared as
// if directory entries had a trailing '/', so "foo" sorts after "foo.txt"
// but before "foo/bar".
func treeSortKey(name string, isTree bool) string {
	if isTree {
		return name + "/"
	}
	return name
}

func (r *GitRepository) WriteTree(ctx context.Context, entries map[string]TreeEntry) (oid.Oid, error) {
	type row struct {
		name string
		key  string
		e    TreeEntry
	}
	rows := make([]row, 0, len(entries))
	for name, e := range entries {
		rows = append(rows, row{name: name, key: treeSortKey(name, e.IsTree()), e: e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })

	var b strings.Builder
	for _, rr := range rows {
		typ := "blob"
		if rr.e.IsTree() {
			typ = "tree"
		}
		fmt.Fprintf(&b, "%s %s %s\t%s\n", rr.e.Mode, typ, rr.e.Oid.String(), rr.name)
	}
	out, _, err := r.proc.run(ctx, []byte(b.String()), "mktree", "--missing")
	if err != nil {
		return oid.Zero, err
	}
	return oid.NewEx(trimmedLine(out))
}

func (r *GitRepository) CreateCommit(ctx context.Context, author, committer Signature, message string, tree oid.Oid, parents []oid.Oid) (oid.Oid, error) {
	return r.createCommit(ctx, author, committer, message, tree, parents, nil)
}

func (r *GitRepository) CreateCommitSigned(ctx context.Context, author, committer Signature, message string, tree oid.Oid, parents []oid.Oid, sign Signer) (oid.Oid, error) {
	return r.createCommit(ctx, author, committer, message, tree, parents, sign)
}

func (r *GitRepository) createCommit(ctx context.Context, author, committer Signature, message string, tree oid.Oid, parents []oid.Oid, sign Signer) (oid.Oid, error) {
	buf := commitBuffer(author, committer, message, tree, parents, nil)
	if sign != nil {
		sig, err := sign([]byte(buf))
		if err != nil {
			return oid.Zero, fmt.Errorf("repo: sign commit: %w", err)
		}
		buf = commitBuffer(author, committer, message, tree, parents, sig)
	}
	out, _, err := r.proc.run(ctx, []byte(buf), "hash-object", "-w", "-t", "commit", "--stdin")
	if err != nil {
		return oid.Zero, err
	}
	return oid.NewEx(trimmedLine(out))
}

// commitBuffer renders a raw git commit object body. When sig is
// non-nil it is embedded as a "gpgsig" header with continuation lines
// indented by one space, matching the format git itself writes for
// `git commit -S`.
func commitBuffer(author, committer Signature, message string, tree oid.Oid, parents []oid.Oid, sig []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", tree.String())
	for _, p := range parents {
		fmt.Fprintf(&b, "parent %s\n", p.String())
	}
	fmt.Fprintf(&b, "author %s\n", formatSignature(author))
	fmt.Fprintf(&b, "committer %s\n", formatSignature(committer))
	if len(sig) > 0 {
		b.WriteString("gpgsig ")
		sigLines := strings.Split(strings.TrimRight(string(sig), "\n"), "\n")
		for i, l := range sigLines {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(message)
	return b.String()
}
