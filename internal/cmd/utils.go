package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dosanma1/envpack/internal/config"
)

// loadConfig resolves the configuration for the current directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, path, err := config.Resolve(cfgFile, cwd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.WithField("path", path).Debug("loaded config")
	}
	return cfg, nil
}

// parseBuildArgs turns KEY=VALUE pairs into a map. A bare KEY takes its value
// from the environment, as docker build does.
func parseBuildArgs(pairs []string) (map[string]string, error) {
	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid build arg %q: expected KEY=VALUE", pair)
		}
		if !found {
			v, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			value = v
		}
		args[key] = value
	}
	return args, nil
}

// envPath returns the environment argument as an absolute, cleaned path.
// Links are not resolved; the path must already be the canonical one.
func envPath(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", arg, err)
	}
	return abs, nil
}
