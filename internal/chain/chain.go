// Package chain rebases an ordered list of single-parent commits onto a
// new base by diffing each one against its own first parent and applying
// that diff, rather than by CherryPick's three-way merge. Unlike the
// Build Engine, chain does not consult the Rule Graph or Operation Cache
// at all; it operates directly on ref names the caller supplies.
package chain

import (
	"context"
	"fmt"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
	"github.com/vapourismo/unstacked/internal/repo"
)

// Commit resolves baseRef as the starting parent, then walks refs in
// order: for each one it diffs the named commit's tree against its own
// sole parent's tree and applies that diff onto the accumulator,
// producing a new commit with the source commit's author, committer,
// and message but the accumulator as its only parent. It returns the
// final accumulated commit's id.
func Commit(ctx context.Context, r repo.Repository, baseRef string, refs []string) (oid.Oid, error) {
	parent, err := r.FindCommit(ctx, baseRef)
	if err != nil {
		return oid.Zero, err
	}

	for _, ref := range refs {
		next, err := r.FindCommit(ctx, ref)
		if err != nil {
			return oid.Zero, err
		}
		if len(next.Parents) != 1 {
			return oid.Zero, fmt.Errorf("chain: %s has %d parents, want exactly 1", ref, len(next.Parents))
		}
		nextParent, err := r.FindCommit(ctx, next.Parents[0].String())
		if err != nil {
			return oid.Zero, err
		}

		changes, err := r.DiffTreeToTree(ctx, nextParent.Tree, next.Tree)
		if err != nil {
			return oid.Zero, err
		}
		newTree, conflicts, err := r.ApplyToTree(ctx, parent.Tree, changes)
		if err != nil {
			return oid.Zero, err
		}
		if len(conflicts) > 0 {
			return oid.Zero, &errs.PatchConflict{
				Path:  ref,
				Base:  parent.Oid.String(),
				Patch: next.Oid.String(),
			}
		}

		newID, err := r.CreateCommit(ctx, next.Author, next.Committer, next.Message, newTree, []oid.Oid{parent.Oid})
		if err != nil {
			return oid.Zero, err
		}
		parent, err = r.FindCommit(ctx, newID.String())
		if err != nil {
			return oid.Zero, err
		}
	}

	return parent.Oid, nil
}
