package repo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vapourismo/unstacked/internal/errs"
	"github.com/vapourismo/unstacked/internal/oid"
)

// GitRepository is the git-subprocess-backed Repository implementation.
type GitRepository struct {
	proc *gitProcess
}

// Open wraps an existing git working directory at root.
func Open(root string) *GitRepository {
	return &GitRepository{proc: &gitProcess{root: root}}
}

func (r *GitRepository) Root() string { return r.proc.root }

func (r *GitRepository) FindCommit(ctx context.Context, revOrOid string) (*Commit, error) {
	out, _, err := r.proc.run(ctx, nil, "rev-parse", "--verify", "--quiet", revOrOid+"^{commit}")
	if err != nil {
		return nil, &errs.NotFound{Kind: "commit", Name: revOrOid}
	}
	id, err := oid.NewEx(trimmedLine(out))
	if err != nil {
		return nil, err
	}
	return r.commitByOid(ctx, id)
}

func (r *GitRepository) commitByOid(ctx context.Context, id oid.Oid) (*Commit, error) {
	out, _, err := r.proc.run(ctx, nil, "cat-file", "-p", id.String())
	if err != nil {
		return nil, &errs.NotFound{Kind: "commit", Name: id.String()}
	}
	c, err := parseCommit(out)
	if err != nil {
		return nil, &errs.Decode{Context: "commit " + id.String(), Cause: err}
	}
	c.Oid = id
	return c, nil
}

func parseCommit(data []byte) (*Commit, error) {
	text := string(data)
	idx := strings.Index(text, "\n\n")
	var header, message string
	if idx >= 0 {
		header, message = text[:idx], text[idx+2:]
	} else {
		header, message = text, ""
	}
	c := &Commit{Message: message}
	for _, line := range strings.Split(header, "\n") {
		switch {
		case strings.HasPrefix(line, "tree "):
			id, err := oid.NewEx(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, err
			}
			c.Tree = id
		case strings.HasPrefix(line, "parent "):
			id, err := oid.NewEx(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, err
			}
			c.Parents = append(c.Parents, id)
		case strings.HasPrefix(line, "author "):
			sig, err := parseSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case strings.HasPrefix(line, "committer "):
			sig, err := parseSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		}
	}
	return c, nil
}

func parseSignature(s string) (Signature, error) {
	open := strings.IndexByte(s, '<')
	closeIdx := strings.IndexByte(s, '>')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return Signature{}, fmt.Errorf("repo: malformed signature line %q", s)
	}
	name := strings.TrimSpace(s[:open])
	email := s[open+1 : closeIdx]
	rest := strings.Fields(strings.TrimSpace(s[closeIdx+1:]))
	when := time.Time{}
	if len(rest) >= 2 {
		sec, err := strconv.ParseInt(rest[0], 10, 64)
		if err == nil {
			loc := time.FixedZone(rest[1], parseTZOffsetSeconds(rest[1]))
			when = time.Unix(sec, 0).In(loc)
		}
	}
	return Signature{Name: name, Email: email, When: when}, nil
}

func parseTZOffsetSeconds(tz string) int {
	if len(tz) != 5 {
		return 0
	}
	sign := 1
	if tz[0] == '-' {
		sign = -1
	}
	hh, err1 := strconv.Atoi(tz[1:3])
	mm, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return 0
	}
	return sign * (hh*3600 + mm*60)
}

func formatSignature(sig Signature) string {
	when := sig.When
	if when.IsZero() {
		when = time.Now()
	}
	return fmt.Sprintf("%s <%s> %d %s", sig.Name, sig.Email, when.Unix(), when.Format("-0700"))
}

func (r *GitRepository) HeadCommit(ctx context.Context) (*Commit, error) {
	return r.FindCommit(ctx, "HEAD")
}

func (r *GitRepository) Head(ctx context.Context) (ref string, detached oid.Oid, isDetached bool, err error) {
	out, _, symErr := r.proc.run(ctx, nil, "symbolic-ref", "-q", "HEAD")
	if symErr == nil {
		return trimmedLine(out), oid.Zero, false, nil
	}
	headOid, err := r.proc.run2Oid(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		return "", oid.Zero, false, &errs.NotFound{Kind: "reference", Name: "HEAD"}
	}
	return "", headOid, true, nil
}

func (p *gitProcess) run2Oid(ctx context.Context, args ...string) (oid.Oid, error) {
	out, _, err := p.run(ctx, nil, args...)
	if err != nil {
		return oid.Zero, err
	}
	return oid.NewEx(trimmedLine(out))
}

func (r *GitRepository) SetHeadDetached(ctx context.Context, id oid.Oid) error {
	_, _, err := r.proc.run(ctx, nil, "update-ref", "--no-deref", "HEAD", id.String())
	return err
}

func resetModeFlag(mode ResetMode) string {
	switch mode {
	case ResetSoft:
		return "--soft"
	case ResetMixed:
		return "--mixed"
	default:
		return "--hard"
	}
}

func (r *GitRepository) Reset(ctx context.Context, id oid.Oid, mode ResetMode) error {
	_, _, err := r.proc.run(ctx, nil, "reset", resetModeFlag(mode), id.String())
	return err
}

func (r *GitRepository) Signature(ctx context.Context) (Signature, error) {
	name, _, err := r.proc.run(ctx, nil, "config", "--get", "user.name")
	if err != nil {
		name = []byte(os.Getenv("USER"))
	}
	email, _, err2 := r.proc.run(ctx, nil, "config", "--get", "user.email")
	if err2 != nil {
		email = []byte(fmt.Sprintf("%s@localhost", strings.TrimSpace(string(name))))
	}
	return Signature{
		Name:  strings.TrimSpace(string(name)),
		Email: strings.TrimSpace(string(email)),
		When:  time.Now(),
	}, nil
}

func (r *GitRepository) Reference(ctx context.Context, name string) (oid.Oid, bool, error) {
	out, _, err := r.proc.run(ctx, nil, "rev-parse", "--verify", "--quiet", name)
	if err != nil {
		return oid.Zero, false, nil
	}
	id, err := oid.NewEx(trimmedLine(out))
	if err != nil {
		return oid.Zero, false, err
	}
	return id, true, nil
}

func (r *GitRepository) SetReference(ctx context.Context, name string, id oid.Oid, logMessage string) error {
	args := []string{"update-ref"}
	if logMessage != "" {
		args = append(args, "--create-reflog", "-m", logMessage)
	}
	args = append(args, name, id.String())
	_, _, err := r.proc.run(ctx, nil, args...)
	return err
}
