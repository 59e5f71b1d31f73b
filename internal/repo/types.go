// Package repo is the repository facade: the narrow set of
// commit/tree/blob/merge/diff/checkout/reference operations the rest of
// unstacked treats as an opaque capability, backed by the real `git`
// binary driven through os/exec.
package repo

import (
	"context"
	"time"

	"github.com/vapourismo/unstacked/internal/oid"
)

// Signature is an author or committer identity with a timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is the subset of a git commit object the core needs.
type Commit struct {
	Oid       oid.Oid
	Tree      oid.Oid
	Parents   []oid.Oid
	Author    Signature
	Committer Signature
	Message   string
}

// ResetMode selects how much of HEAD/index/workdir a Reset touches.
type ResetMode int

const (
	// ResetSoft moves only HEAD.
	ResetSoft ResetMode = iota
	// ResetMixed moves HEAD and resets the index, leaving the workdir.
	ResetMixed
	// ResetHard moves HEAD and resets both the index and the workdir.
	ResetHard
)

// ChangeStatus classifies one path's change in a Diff.
type ChangeStatus byte

const (
	Added    ChangeStatus = 'A'
	Deleted  ChangeStatus = 'D'
	Modified ChangeStatus = 'M'
	// Conflict marks a path a merge or apply operation could not
	// reconcile; only ever produced by MergeTrees/ApplyToTree, never by
	// a plain two-tree diff.
	Conflict ChangeStatus = 'U'
)

// PathChange is one path-level change between two trees, or between a
// tree and the workdir/index.
type PathChange struct {
	Path     string
	Status   ChangeStatus
	FromOid  oid.Oid
	FromMode string
	ToOid    oid.Oid
	ToMode   string
}

// Diff is an ordered set of per-path changes.
type Diff []PathChange

// Paths returns the changed paths, in order.
func (d Diff) Paths() []string {
	paths := make([]string, len(d))
	for i, c := range d {
		paths[i] = c.Path
	}
	return paths
}

// Signer produces a detached signature over a byte buffer. It is the
// pluggable GPG-signing capability: the core never assumes a particular
// signing protocol or binary.
type Signer func(data []byte) ([]byte, error)

// Repository is the narrow repository interface consumed by the rest of
// the core.
type Repository interface {
	// Root returns the repository's working-directory root.
	Root() string

	// FindCommit resolves a revision expression or hex Oid to a Commit.
	FindCommit(ctx context.Context, revOrOid string) (*Commit, error)
	// HeadCommit returns the commit HEAD currently points at.
	HeadCommit(ctx context.Context) (*Commit, error)
	// Head returns the symbolic ref name HEAD points at (branch), or the
	// detached Oid and detached=true if HEAD is not on a branch.
	Head(ctx context.Context) (ref string, detached oid.Oid, isDetached bool, err error)
	// SetHeadDetached points HEAD directly at id, without moving any
	// branch reference.
	SetHeadDetached(ctx context.Context, id oid.Oid) error
	// Reset moves HEAD (and, depending on mode, the index/workdir) to id.
	Reset(ctx context.Context, id oid.Oid, mode ResetMode) error

	// CreateCommit creates a commit object with the given tree, parents,
	// and identities, returning its Oid.
	CreateCommit(ctx context.Context, author, committer Signature, message string, tree oid.Oid, parents []oid.Oid) (oid.Oid, error)
	// CreateCommitSigned is CreateCommit plus a detached OpenPGP-style
	// signature produced by sign, attached the way `git commit -S` embeds
	// a gpgsig header.
	CreateCommitSigned(ctx context.Context, author, committer Signature, message string, tree oid.Oid, parents []oid.Oid, sign Signer) (oid.Oid, error)

	// FindTree resolves a tree Oid, returning its entries as path ->
	// blob/subtree Oid.
	FindTree(ctx context.Context, id oid.Oid) (map[string]TreeEntry, error)
	// FindBlob returns a blob's content.
	FindBlob(ctx context.Context, id oid.Oid) ([]byte, error)
	// WriteBlob stores content as a blob and returns its Oid.
	WriteBlob(ctx context.Context, content []byte) (oid.Oid, error)
	// WriteTree stores one level of name -> entry as a tree object and
	// returns its Oid. Names are single path segments; nested directories
	// must already be written as subtree entries.
	WriteTree(ctx context.Context, entries map[string]TreeEntry) (oid.Oid, error)

	// CherryPick applies the diff introduced by cherry (relative to
	// cherry's own first parent) onto onto, producing a new commit whose
	// author/committer/message are taken from cherry and whose sole
	// parent is onto, so identical inputs yield identical Oids. sign may
	// be nil for an unsigned cherry-pick.
	CherryPick(ctx context.Context, onto, cherry oid.Oid, sign Signer) (result oid.Oid, conflicts []PathChange, err error)

	// MergeTrees performs a three-way merge of ours/theirs against base,
	// returning the resulting tree and any conflicted paths. Conflicted
	// paths leave the resulting Oid as oid.Zero.
	MergeTrees(ctx context.Context, base, ours, theirs oid.Oid) (oid.Oid, []PathChange, error)
	// ApplyToTree applies diff onto tree, producing a new tree, or
	// reports the paths where diff's expected "from" state did not match
	// tree's actual content.
	ApplyToTree(ctx context.Context, tree oid.Oid, diff Diff) (oid.Oid, []PathChange, error)

	// DiffTreeToTree diffs two tree objects.
	DiffTreeToTree(ctx context.Context, a, b oid.Oid) (Diff, error)
	// DiffTreeToIndex diffs a tree object against the current index.
	DiffTreeToIndex(ctx context.Context, tree oid.Oid) (Diff, error)
	// DiffTreeToWorkdir diffs a tree object against the live working
	// directory contents.
	DiffTreeToWorkdir(ctx context.Context, tree oid.Oid) (Diff, error)

	// StagedTree returns the tree represented by the current index.
	StagedTree(ctx context.Context) (oid.Oid, error)
	// WorkdirTree returns the tree represented by the live working
	// directory contents (built via a throwaway index).
	WorkdirTree(ctx context.Context) (oid.Oid, error)

	// CheckoutTree updates both the working directory and the index to
	// match tree.
	CheckoutTree(ctx context.Context, tree oid.Oid) error
	// ReadTreeIntoIndex replaces only the index's contents with tree,
	// leaving the working directory untouched.
	ReadTreeIntoIndex(ctx context.Context, tree oid.Oid) error

	// Reference looks up a reference, returning found=false if absent.
	Reference(ctx context.Context, name string) (id oid.Oid, found bool, err error)
	// SetReference creates or force-updates a reference, recording
	// logMessage in its reflog.
	SetReference(ctx context.Context, name string, id oid.Oid, logMessage string) error

	// Signature returns the default author/committer identity derived
	// from the repository's git configuration.
	Signature(ctx context.Context) (Signature, error)
}

// TreeEntry is one entry of a tree object: either a blob (file) or a
// nested tree (directory), distinguished by Mode.
type TreeEntry struct {
	Mode string // "100644", "100755", "120000", or "040000" for a subtree
	Oid  oid.Oid
}

// IsTree reports whether e refers to a subtree rather than a blob.
func (e TreeEntry) IsTree() bool { return e.Mode == "040000" }
