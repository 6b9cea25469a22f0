package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/archiver"
	"github.com/dosanma1/envpack/internal/builder"
	"github.com/dosanma1/envpack/internal/config"
	"github.com/dosanma1/envpack/internal/pipeline"
	"github.com/dosanma1/envpack/internal/ui"
)

// buildFlags are shared by build and watch.
type buildFlags struct {
	template  string
	engine    string
	binary    string
	archiver  string
	pull      bool
	noCache   bool
	platform  string
	buildArgs []string
	timeout   time.Duration
	yes       bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.template, "template", "", "Build description template (default: bundled)")
	flags.StringVar(&f.engine, "engine", builder.CLIName, "Build engine (cli|api)")
	flags.StringVar(&f.binary, "binary", "docker", "Container CLI used by the cli engine")
	flags.StringVar(&f.archiver, "archiver", archiver.Native, "Archive writer (native|tar)")
	flags.BoolVar(&f.pull, "pull", false, "Always attempt to pull a newer base image")
	flags.BoolVar(&f.noCache, "no-cache", false, "Do not use cache when building the image")
	flags.StringVar(&f.platform, "platform", "", "Target platform (e.g. linux/amd64)")
	flags.StringArrayVar(&f.buildArgs, "build-arg", nil, "Build-time variable KEY=VALUE (repeatable)")
	flags.DurationVar(&f.timeout, "timeout", 0, "Abort the build after this long (0 = no limit)")
}

// options merges flags over the configuration into pipeline options.
func (f *buildFlags) options(cmd *cobra.Command, cfg *config.Config, env, image string) (pipeline.Options, error) {
	r := config.NewResolver(cfg, cmd.Flags().Changed)

	args, err := parseBuildArgs(f.buildArgs)
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.Options{
		EnvPath:     env,
		Image:       image,
		Template:    r.String("template", f.template, cfg.Template),
		Placeholder: cfg.Placeholder,
		Archiver:    r.String("archiver", f.archiver, cfg.Archiver),
		TarBinary:   cfg.TarBinary,
		Builder:     r.String("engine", f.engine, cfg.Builder.Engine),
		Binary:      r.String("binary", f.binary, cfg.Builder.Binary),
		Pull:        r.Bool("pull", f.pull, cfg.Builder.Pull),
		NoCache:     r.Bool("no-cache", f.noCache, cfg.Builder.NoCache),
		Platform:    r.String("platform", f.platform, cfg.Builder.Platform),
		BuildArgs:   r.BuildArgs(args),
		Timeout:     r.Duration("timeout", f.timeout, cfg.Timeout),
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	}
	if !quiet && ui.IsTerminal(os.Stderr) {
		opts.Progress = os.Stderr
	}
	return opts, nil
}

var buildOpts buildFlags

var buildCmd = &cobra.Command{
	Use:   "build ENV IMAGE",
	Short: "Build a container image from an environment directory",
	Long: `Build a container image holding the environment at ENV, tagged IMAGE.

ENV must be the canonical path of the environment, as registered by the
environment manager. The environment is placed in the image at that same path,
together with every file its symbolic links point to.

Stages and exit codes:
  RENDER   render the build description      (3)
  LIST     list files and link targets       (4)
  ARCHIVE  pack the listed files             (5)
  BUILD    build and tag the image           (6)

Examples:
  envpack build /opt/conda/envs/demo demo:latest
  envpack build /opt/conda/envs/demo demo:latest --template Dockerfile.in
  envpack build /opt/conda/envs/demo demo:latest --engine api --no-cache
  envpack build /opt/conda/envs/demo demo:latest --binary podman --platform linux/arm64
  envpack build /opt/conda/envs/demo demo:latest --build-arg HTTP_PROXY=http://proxy:3128`,
	Args: cobra.ExactArgs(2),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildOpts.register(buildCmd)
	buildCmd.Flags().BoolVarP(&buildOpts.yes, "yes", "y", false, "Do not ask for confirmation")
}

func runBuild(cmd *cobra.Command, args []string) error {
	env, err := envPath(args[0])
	if err != nil {
		return err
	}
	image := args[1]

	// Fail fast on names the engine would reject, before any work.
	if err := builder.ValidateImageName(image); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := buildOpts.options(cmd, cfg, env, image)
	if err != nil {
		return err
	}
	opts.Confirm = ui.Confirmer(buildOpts.yes, ui.Interactive())

	p, err := pipeline.New(logger, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📦 Packing %s into %s...\n", env, image)

	result, err := p.Run(cmd.Context())
	if err != nil {
		if hint := builder.Hint(err); hint != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "💡 %s\n", hint)
		}
		return err
	}

	fmt.Fprintf(out, "✅ Built %s in %s\n", image, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "   Files:   %d\n", result.Files)
	fmt.Fprintf(out, "   Archive: %s (%s)\n", humanize.Bytes(uint64(result.Archive.Size)), result.Archive.Digest)
	if result.Artifact.ID != "" {
		fmt.Fprintf(out, "   Image:   %s\n", result.Artifact.ID)
	}
	return nil
}
