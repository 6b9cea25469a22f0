package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/config"
	applog "github.com/dosanma1/envpack/internal/log"
)

// Set at build time with -ldflags "-X github.com/dosanma1/envpack/internal/cmd.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
	quiet   bool

	logger *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "envpack",
	Short: "envpack - Package an environment directory into a container image",
	Long: `envpack turns an existing environment directory, such as a conda
environment, into a container image.

It renders a build description from a template, lists every file of the
environment together with the targets of its symbolic links, packs them into
a tar archive with the links preserved, and builds the image from that archive.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = applog.NewLogger(cmd.ErrOrStderr(), verbose, quiet, version)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./"+config.FileName+", then $XDG_CONFIG_HOME/envpack/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show warnings and errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Commands are registered in their respective files via init()
}
