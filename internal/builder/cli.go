package builder

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/runner"
)

// CLIName identifies the container engine CLI builder.
const CLIName = "cli"

// CLIBuilder builds through a docker-compatible command line (docker, podman).
type CLIBuilder struct {
	log    *logrus.Entry
	runner *runner.Runner
	binary string
}

// NewCLIBuilder creates a new CLI builder
func NewCLIBuilder(opts Options) *CLIBuilder {
	bin := opts.Binary
	if bin == "" {
		bin = "docker"
	}
	r := opts.Runner
	if r == nil {
		r = runner.New(opts.Log)
	}
	return &CLIBuilder{log: opts.Log, runner: r, binary: bin}
}

// Name returns the builder identifier
func (b *CLIBuilder) Name() string {
	return CLIName
}

// Validate validates the build options
func (b *CLIBuilder) Validate(opts *BuildOptions) error {
	if err := validateCommon(opts); err != nil {
		return err
	}
	_, err := runner.LookPath(b.binary)
	return err
}

// Build runs "<binary> build -f DOCKERFILE -t IMAGE ." inside the context
// directory.
func (b *CLIBuilder) Build(ctx context.Context, opts *BuildOptions) (*BuildArtifact, error) {
	if err := b.Validate(opts); err != nil {
		return nil, err
	}

	args := b.args(opts)
	b.log.WithFields(logrus.Fields{
		"binary": b.binary,
		"image":  opts.Image,
	}).Debug("invoking container build")

	if err := b.runner.Run(ctx, opts.ContextDir, b.binary, args...); err != nil {
		return nil, fmt.Errorf("%s build failed: %w", b.binary, err)
	}

	return &BuildArtifact{Image: opts.Image, Builder: CLIName}, nil
}

func (b *CLIBuilder) args(opts *BuildOptions) []string {
	args := []string{"build", "-f", opts.Dockerfile, "-t", opts.Image}
	if opts.Pull {
		args = append(args, "--pull")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	for _, kv := range sortedBuildArgs(opts.BuildArgs) {
		args = append(args, "--build-arg", kv)
	}
	return append(args, ".")
}
