// Package config loads unstacked's small optional TOML configuration
// file: the refs namespace, a fallback identity, and the default sign
// flag. A missing file means defaults apply.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/vapourismo/unstacked/internal/errs"
)

// FileName is the configuration file's name, resolved relative to the
// repository's working directory root.
const FileName = ".unstacked.toml"

// Identity is an author/committer identity used when the repository's own
// git identity is unset.
type Identity struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Config is unstacked's small set of user-overridable defaults.
type Config struct {
	// Namespace is the prefix under which all refs/<namespace>/* state
	// references live. Defaults to "unstacked".
	Namespace string `toml:"namespace"`
	// DefaultIdentity is decoded from the file but not read by any
	// operation: commit identities always come from the repository's
	// Signature.
	DefaultIdentity Identity `toml:"identity"`
	// SignByDefault makes commit and amend request a signature even
	// without --sign. Build cherry-picks are never signed.
	SignByDefault bool `toml:"sign_by_default"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{Namespace: "unstacked"}
}

// Load reads FileName from dir, falling back to Default if the file does
// not exist. A malformed file is reported as *errs.Decode.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &errs.Decode{Context: FileName, Cause: err}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "unstacked"
	}
	return cfg, nil
}
