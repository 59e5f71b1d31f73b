// Package worktree re-bases staged and unstaged changes onto a new
// target commit via a pair of three-way merges, so the user never loses
// in-progress work just by moving the focus.
package worktree

import (
	"context"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/repo"
)

// Reconciler re-bases the working copy onto a new target commit.
type Reconciler struct {
	repo repo.Repository
}

// New binds a Reconciler to a Repository Façade.
func New(r repo.Repository) *Reconciler {
	return &Reconciler{repo: r}
}

// Reconcile moves the working copy from its current HEAD onto target.
// HEAD only moves after both merges succeed, so a conflict leaves the
// repository untouched.
func (w *Reconciler) Reconcile(ctx context.Context, target *repo.Commit) error {
	head, err := w.repo.HeadCommit(ctx)
	if err != nil {
		return err
	}
	return w.reconcile(ctx, head, target)
}

func (w *Reconciler) reconcile(ctx context.Context, head, target *repo.Commit) error {
	stagedTree, err := w.repo.StagedTree(ctx)
	if err != nil {
		return err
	}

	newIndexTree, conflicts, err := w.repo.MergeTrees(ctx, head.Tree, stagedTree, target.Tree)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &errs.IndexConflicts{Paths: paths(conflicts)}
	}

	unstagedDiff, err := w.repo.DiffTreeToWorkdir(ctx, newIndexTree)
	if err != nil {
		return err
	}
	_, conflicts, err = w.repo.ApplyToTree(ctx, newIndexTree, unstagedDiff)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &errs.WorkingDirConflicts{Paths: paths(conflicts)}
	}

	workdirTree, err := w.repo.WorkdirTree(ctx)
	if err != nil {
		return err
	}
	newWorkdirTree, conflicts, err := w.repo.MergeTrees(ctx, head.Tree, workdirTree, target.Tree)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &errs.WorkingDirConflicts{Paths: paths(conflicts)}
	}

	if err := w.repo.SetHeadDetached(ctx, target.Oid); err != nil {
		return err
	}
	if err := w.repo.Reset(ctx, target.Oid, repo.ResetHard); err != nil {
		return err
	}
	if err := w.repo.CheckoutTree(ctx, newWorkdirTree); err != nil {
		return err
	}
	return w.repo.ReadTreeIntoIndex(ctx, newIndexTree)
}

func paths(changes []repo.PathChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}
