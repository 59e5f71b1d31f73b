package repo

import (
	"context"
	"os"
	"strings"

	"github.com/vapourismo/unstacked/internal/oid"
)

// scratchIndex allocates a path for a throwaway git index file, used to
// perform read-tree/write-tree style operations without disturbing the
// repository's real index -- the same isolation technique `git stash`
// itself relies on internally.
func scratchIndex() (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "unstacked-index-*")
	if err != nil {
		return "", nil, err
	}
	path = f.Name()
	_ = f.Close()
	_ = os.Remove(path) // git treats a missing GIT_INDEX_FILE as a fresh empty index
	return path, func() { _ = os.Remove(path) }, nil
}

func (r *GitRepository) scratchProc() (*gitProcess, func(), error) {
	path, cleanup, err := scratchIndex()
	if err != nil {
		return nil, nil, err
	}
	return r.proc.withEnv("GIT_INDEX_FILE=" + path), cleanup, nil
}

func (r *GitRepository) MergeTrees(ctx context.Context, base, ours, theirs oid.Oid) (oid.Oid, []PathChange, error) {
	p, cleanup, err := r.scratchProc()
	if err != nil {
		return oid.Zero, nil, err
	}
	defer cleanup()

	if _, _, err := p.run(ctx, nil, "read-tree", "-m", "--aggressive", base.String(), ours.String(), theirs.String()); err != nil {
		return oid.Zero, nil, err
	}
	conflicts, err := p.conflictedPaths(ctx)
	if err != nil {
		return oid.Zero, nil, err
	}
	if len(conflicts) > 0 {
		return oid.Zero, conflicts, nil
	}
	treeOid, err := p.run2Oid(ctx, "write-tree")
	if err != nil {
		return oid.Zero, nil, err
	}
	return treeOid, nil, nil
}

// conflictedPaths inspects the index for unmerged (stage > 0) entries.
func (p *gitProcess) conflictedPaths(ctx context.Context) ([]PathChange, error) {
	out, _, err := p.run(ctx, nil, "ls-files", "--stage", "--unmerged")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var result []PathChange
	for _, line := range lines(out) {
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		path := line[tab+1:]
		if seen[path] {
			continue
		}
		seen[path] = true
		result = append(result, PathChange{Path: path, Status: Conflict})
	}
	return result, nil
}

func (r *GitRepository) ApplyToTree(ctx context.Context, tree oid.Oid, diff Diff) (oid.Oid, []PathChange, error) {
	p, cleanup, err := r.scratchProc()
	if err != nil {
		return oid.Zero, nil, err
	}
	defer cleanup()

	if _, _, err := p.run(ctx, nil, "read-tree", tree.String()); err != nil {
		return oid.Zero, nil, err
	}

	var conflicts []PathChange
	for _, change := range diff {
		current, found, err := r.pathInTree(ctx, tree, change.Path)
		if err != nil {
			return oid.Zero, nil, err
		}
		matches := (found && current.Oid == change.FromOid) || (!found && change.FromOid.IsZero())
		if !matches {
			conflicts = append(conflicts, PathChange{Path: change.Path, Status: Conflict})
			continue
		}
		if change.Status == Deleted {
			if _, _, err := p.run(ctx, nil, "update-index", "--force-remove", change.Path); err != nil {
				return oid.Zero, nil, err
			}
			continue
		}
		if _, _, err := p.run(ctx, nil, "update-index", "--add", "--cacheinfo", change.ToMode, change.ToOid.String(), change.Path); err != nil {
			return oid.Zero, nil, err
		}
	}
	if len(conflicts) > 0 {
		return oid.Zero, conflicts, nil
	}
	treeOid, err := p.run2Oid(ctx, "write-tree")
	if err != nil {
		return oid.Zero, nil, err
	}
	return treeOid, nil, nil
}

// pathInTree resolves a single file path inside tree, using git's
// recursive ls-tree restricted to one pathspec.
func (r *GitRepository) pathInTree(ctx context.Context, tree oid.Oid, path string) (TreeEntry, bool, error) {
	out, _, err := r.proc.run(ctx, nil, "ls-tree", "-r", tree.String(), "--", path)
	if err != nil {
		return TreeEntry{}, false, err
	}
	ls := lines(out)
	if len(ls) == 0 {
		return TreeEntry{}, false, nil
	}
	entry, _, err := parseLsTreeLine(ls[0])
	if err != nil {
		return TreeEntry{}, false, err
	}
	return entry, true, nil
}

func (r *GitRepository) CherryPick(ctx context.Context, onto, cherry oid.Oid, sign Signer) (oid.Oid, []PathChange, error) {
	cherryCommit, err := r.commitByOid(ctx, cherry)
	if err != nil {
		return oid.Zero, nil, err
	}
	ontoCommit, err := r.commitByOid(ctx, onto)
	if err != nil {
		return oid.Zero, nil, err
	}
	base := oid.Zero
	if len(cherryCommit.Parents) > 0 {
		parentCommit, err := r.commitByOid(ctx, cherryCommit.Parents[0])
		if err != nil {
			return oid.Zero, nil, err
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

func (r *GitRepository) DiffTreeToTree(ctx context.Context, a, b oid.Oid) (Diff, error) {
	out, _, err := r.proc.run(ctx, nil, "diff", "--raw", "--no-abbrev", "--no-renames", a.String(), b.String())
	if err != nil {
		return nil, err
	}
	return parseRawDiff(out)
}

func (r *GitRepository) DiffTreeToIndex(ctx context.Context, tree oid.Oid) (Diff, error) {
	out, _, err := r.proc.run(ctx, nil, "diff", "--raw", "--no-abbrev", "--no-renames", "--cached", tree.String())
	if err != nil {
		return nil, err
	}
	return parseRawDiff(out)
}

func (r *GitRepository) DiffTreeToWorkdir(ctx context.Context, tree oid.Oid) (Diff, error) {
	out, _, err := r.proc.run(ctx, nil, "diff", "--raw", "--no-abbrev", "--no-renames", tree.String())
	if err != nil {
		return nil, err
	}
	return parseRawDiff(out)
}

func parseRawDiff(out []byte) (Diff, error) {
	var d Diff
	for _, line := range lines(out) {
		line = strings.TrimPrefix(line, ":")
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		fields := strings.Fields(line[:tab])
		if len(fields) < 5 {
			continue
		}
		fromOid, err := oid.NewEx(fields[2])
		if err != nil {
			return nil, err
		}
		toOid, err := oid.NewEx(fields[3])
		if err != nil {
			return nil, err
		}
		status := ChangeStatus(fields[4][0])
		d = append(d, PathChange{
			Path:     line[tab+1:],
			Status:   status,
			FromMode: fields[0],
			FromOid:  fromOid,
			ToMode:   fields[1],
			ToOid:    toOid,
		})
	}
	return d, nil
}

func (r *GitRepository) StagedTree(ctx context.Context) (oid.Oid, error) {
	return r.proc.run2Oid(ctx, "write-tree")
}

func (r *GitRepository) WorkdirTree(ctx context.Context) (oid.Oid, error) {
	p, cleanup, err := r.scratchProc()
	if err != nil {
		return oid.Zero, err
	}
	defer cleanup()
	if _, _, err := p.run(ctx, nil, "add", "-A"); err != nil {
		return oid.Zero, err
	}
	return p.run2Oid(ctx, "write-tree")
}

func (r *GitRepository) CheckoutTree(ctx context.Context, tree oid.Oid) error {
	_, _, err := r.proc.run(ctx, nil, "read-tree", "--reset", "-u", tree.String())
	return err
}

func (r *GitRepository) ReadTreeIntoIndex(ctx context.Context, tree oid.Oid) error {
	_, _, err := r.proc.run(ctx, nil, "read-tree", tree.String())
	return err
}
