package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/builder"
	"github.com/dosanma1/envpack/internal/pipeline"
	"github.com/dosanma1/envpack/internal/watch"
)

var (
	watchOpts     buildFlags
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch ENV IMAGE",
	Short: "Rebuild the image whenever the environment changes",
	Long: `Build IMAGE from ENV, then watch ENV and rebuild after every burst of
changes, for example after installing or removing a package.

A rebuild starts once no change has been seen for the debounce period.
Failed rebuilds are reported and watching continues. Press Ctrl+C to stop.

Examples:
  envpack watch /opt/conda/envs/demo demo:dev
  envpack watch /opt/conda/envs/demo demo:dev --debounce 5s --engine api`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchOpts.register(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "Quiet period before a rebuild")
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := envPath(args[0])
	if err != nil {
		return err
	}
	image := args[1]
	if err := builder.ValidateImageName(image); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := watchOpts.options(cmd, cfg, env, image)
	if err != nil {
		return err
	}
	// Nobody is there to answer between rebuilds.
	opts.Confirm = nil

	p, err := pipeline.New(logger, opts)
	if err != nil {
		return err
	}

	wcfg := watch.DefaultWatcherConfig(env)
	wcfg.IgnorePatterns = cfg.Watch.Ignore
	w, err := watch.NewWatcher(wcfg, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx := cmd.Context()
	if err := w.Start(ctx); err != nil {
		return err
	}

	debounce := cfg.Watch.Debounce
	if cmd.Flags().Changed("debounce") {
		debounce = watchDebounce
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "👀 Watching %s (Ctrl+C to stop)\n", env)

	loop := watch.NewLoop(logger, debounce, func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			fmt.Fprintf(out, "🔄 %d change(s), rebuilding %s...\n", len(changed), image)
		} else {
			fmt.Fprintf(out, "📦 Building %s...\n", image)
		}
		result, err := p.Run(ctx)
		if err != nil {
			fmt.Fprintf(out, "❌ %v\n", err)
			return err
		}
		fmt.Fprintf(out, "✅ Built %s in %s\n", image, result.Duration.Round(time.Millisecond))
		return nil
	})

	return loop.Run(ctx, w.Events(), w.Errors())
}
