// Package builder runs container image builds from a prepared build context.
//
// A build context is a directory holding the rendered build description and
// everything it references. Builders differ only in how they reach the
// container engine: the cli builder shells out to a docker-compatible binary,
// the api builder talks to the Docker Engine API directly.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/distribution/reference"
)

// Builder is the interface that all container engine builders must implement.
type Builder interface {
	// Name returns the builder name (e.g., "cli", "api")
	Name() string

	// Build executes the build with the given options
	Build(ctx context.Context, opts *BuildOptions) (*BuildArtifact, error)

	// Validate validates the build options
	Validate(opts *BuildOptions) error
}

// BuildOptions contains the options for a build operation
type BuildOptions struct {
	// ContextDir is the build context directory
	ContextDir string

	// Dockerfile is the path to the rendered build description
	Dockerfile string

	// Image is the name the built image is tagged with
	Image string

	// Pull always attempts to pull a newer base image
	Pull bool

	// NoCache disables the build cache
	NoCache bool

	// Platform sets the target platform (e.g., "linux/amd64")
	Platform string

	// BuildArgs are passed as build-time variables
	BuildArgs map[string]string
}

// ValidateImageName checks that name is a valid image reference.
func ValidateImageName(name string) error {
	if name == "" {
		return fmt.Errorf("image name is required")
	}
	if _, err := reference.ParseNormalizedNamed(name); err != nil {
		return fmt.Errorf("invalid image name %q: %w", name, err)
	}
	return nil
}

// validateCommon checks the options every builder needs.
func validateCommon(opts *BuildOptions) error {
	if err := ValidateImageName(opts.Image); err != nil {
		return err
	}

	info, err := os.Stat(opts.ContextDir)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("build context %s is not a directory", opts.ContextDir)
	}

	if _, err := os.Stat(opts.Dockerfile); err != nil {
		return fmt.Errorf("build description: %w", err)
	}
	return nil
}

// dockerfileInContext returns the build description path relative to the
// context directory.
func dockerfileInContext(opts *BuildOptions) (string, error) {
	rel, err := filepath.Rel(opts.ContextDir, opts.Dockerfile)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("build description %s is outside the build context %s", opts.Dockerfile, opts.ContextDir)
	}
	return filepath.ToSlash(rel), nil
}

// sortedBuildArgs returns the build args as sorted KEY=VALUE pairs.
func sortedBuildArgs(args map[string]string) []string {
	pairs := make([]string, 0, len(args))
	for k, v := range args {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}
