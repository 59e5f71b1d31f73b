package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vapourismo/unstacked/internal/logging"
)

// gitProcess is the exec.Cmd-building helper every operation in this
// package goes through; it centralises subprocess invocation of the
// `git` binary.
type gitProcess struct {
	root string
	env  []string
}

func (g *gitProcess) run(ctx context.Context, stdin []byte, args ...string) (stdout []byte, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.root}, args...)...)
	if len(g.env) > 0 {
		cmd.Env = append(cmd.Environ(), g.env...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	logging.Log().WithField("args", args).Debug("git exec")
	runErr := cmd.Run()
	if runErr != nil {
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), runErr, strings.TrimSpace(errBuf.String()))
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

// withEnv returns a gitProcess that additionally sets the given
// environment variables (e.g. a scratch GIT_INDEX_FILE), leaving the
// receiver untouched.
func (g *gitProcess) withEnv(extra ...string) *gitProcess {
	return &gitProcess{root: g.root, env: append(append([]string{}, g.env...), extra...)}
}

func trimmedLine(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}

func lines(b []byte) []string {
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
