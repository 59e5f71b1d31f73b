// Package errs declares the closed set of error kinds the unstacked core
// produces: NotFound, TypeMismatch, PatchConflict, reconciliation
// conflicts, navigation ambiguity, codec failures, empty commit messages,
// focus/HEAD disagreement, and rule-graph cycles. Every kind wraps a
// sentinel so callers can use
// errors.Is/errors.As without caring which component raised it.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels usable with errors.Is against any wrapped error below.
var (
	ErrNotFound            = errors.New("not found")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrPatchConflict       = errors.New("patch conflict")
	ErrIndexConflicts      = errors.New("index conflicts")
	ErrWorkingDirConflicts = errors.New("working directory conflicts")
	ErrAmbiguous           = errors.New("ambiguous")
	ErrDecode              = errors.New("decode error")
	ErrEncode              = errors.New("encode error")
	ErrEmptyMessage        = errors.New("empty message")
	ErrUnexpectedHEAD      = errors.New("unexpected HEAD")
	ErrCycle               = errors.New("cycle")
)

// NotFound reports a missing rule, reference, or KV path.
type NotFound struct {
	Kind string // "rule", "reference", "kv-path", ...
	Name string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Name) }
func (e *NotFound) Unwrap() error { return ErrNotFound }

// TypeMismatch reports that a rule is not of the expected variant, or a
// KV path traversed a leaf as if it were a subtree.
type TypeMismatch struct {
	Detail string
}

func (e *TypeMismatch) Error() string { return "type mismatch: " + e.Detail }
func (e *TypeMismatch) Unwrap() error { return ErrTypeMismatch }

// PatchConflict reports a failed cherry-pick at a specific path.
type PatchConflict struct {
	Path  string
	Base  string
	Patch string
}

func (e *PatchConflict) Error() string {
	return fmt.Sprintf("patch conflict at %s: cherry-picking %s onto %s failed", e.Path, e.Patch, e.Base)
}
func (e *PatchConflict) Unwrap() error { return ErrPatchConflict }

// IndexConflicts reports a reconciliation failure merging the staged tree.
type IndexConflicts struct {
	Paths []string
}

func (e *IndexConflicts) Error() string {
	return fmt.Sprintf("index conflicts in %d path(s)", len(e.Paths))
}
func (e *IndexConflicts) Unwrap() error { return ErrIndexConflicts }

// WorkingDirConflicts reports a reconciliation failure merging the
// worktree (unstaged changes or the workdir-vs-target merge).
type WorkingDirConflicts struct {
	Paths []string
}

func (e *WorkingDirConflicts) Error() string {
	return fmt.Sprintf("working directory conflicts in %d path(s)", len(e.Paths))
}
func (e *WorkingDirConflicts) Unwrap() error { return ErrWorkingDirConflicts }

// Ambiguous reports that path navigation found more than one successor.
type Ambiguous struct {
	Rule       string
	Successors []string
}

func (e *Ambiguous) Error() string {
	return fmt.Sprintf("rule %q has %d dependents; use goto to pick one", e.Rule, len(e.Successors))
}
func (e *Ambiguous) Unwrap() error { return ErrAmbiguous }

// Decode reports a JSON (or other persisted-encoding) decode failure.
type Decode struct {
	Context string
	Cause   error
}

func (e *Decode) Error() string { return fmt.Sprintf("decode %s: %v", e.Context, e.Cause) }
func (e *Decode) Unwrap() error { return ErrDecode }

// Encode reports a JSON (or other persisted-encoding) encode failure.
type Encode struct {
	Context string
	Cause   error
}

func (e *Encode) Error() string { return fmt.Sprintf("encode %s: %v", e.Context, e.Cause) }
func (e *Encode) Unwrap() error { return ErrEncode }

// EmptyMessage reports that the user provided no commit text.
type EmptyMessage struct{}

func (e *EmptyMessage) Error() string { return "commit message is empty" }
func (e *EmptyMessage) Unwrap() error { return ErrEmptyMessage }

// UnexpectedHEAD reports that stored focus/state disagrees with the
// repository's current HEAD.
type UnexpectedHEAD struct {
	Stored  string
	Current string
}

func (e *UnexpectedHEAD) Error() string {
	return fmt.Sprintf("stored HEAD %s does not match repository HEAD %s", e.Stored, e.Current)
}
func (e *UnexpectedHEAD) Unwrap() error { return ErrUnexpectedHEAD }

// Cycle reports a cyclic Rule Graph detected during a build. The engine
// tracks the in-progress rule set instead of recursing until stack
// exhaustion.
type Cycle struct {
	Names []string
}

func (e *Cycle) Error() string { return fmt.Sprintf("cycle detected in rule graph: %v", e.Names) }
func (e *Cycle) Unwrap() error { return ErrCycle }
