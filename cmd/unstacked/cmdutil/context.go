// Package cmdutil wires the Model's operations into a small cobra
// command tree. It stays deliberately thin: no message editor
// integration, no diff colouring, no GPG binary invocation.
package cmdutil

import (
	"context"
	"fmt"
	"os"

	"github.com/vapourismo/unstacked/internal/config"
	"github.com/vapourismo/unstacked/internal/model"
	"github.com/vapourismo/unstacked/internal/repo"
)

// env bundles the opened Repository Façade and Model for a single command
// invocation, plus the resolved configuration (namespace, sign default).
type env struct {
	cfg   *config.Config
	repo  repo.Repository
	model *model.Model
}

func openEnv(ctx context.Context, root string) (*env, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	r := repo.Open(root)

	refs := model.Refs{
		Model: "refs/" + cfg.Namespace + "/model",
		Cache: "refs/" + cfg.Namespace + "/cache",
		State: "refs/" + cfg.Namespace + "/state",
		Rule:  "refs/" + cfg.Namespace + "/rule/",
	}

	m, err := model.Load(ctx, r, refs)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, repo: r, model: m}, nil
}

// signer resolves the --sign flag into a repo.Signer. This front-end
// does not invoke a GPG binary, so requesting a signature fails loudly
// rather than silently producing an unsigned result.
func (e *env) signer(requested bool) (repo.Signer, error) {
	if !requested && !e.cfg.SignByDefault {
		return nil, nil
	}
	return nil, fmt.Errorf("cmdutil: signing requires a Signer capability and none is configured")
}
