package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the envpack configuration",
	Long: `Validates the configuration file against the JSON Schema.
The file is the one given with --config, or the first of ./.envpack.yaml and
$XDG_CONFIG_HOME/envpack/config.yaml that exists.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	path, err := config.Find(cfgFile, cwd)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("no configuration file found")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔍 Validating %s...\n", path)

	if _, err := config.Load(path); err != nil {
		var verr *config.ValidationError
		if !errors.As(err, &verr) {
			return err
		}

		// Print validation errors
		fmt.Fprintln(out, "\n❌ Validation failed with the following errors:")
		fmt.Fprintln(out)
		for i, problem := range verr.Problems {
			fmt.Fprintf(out, "%d. %s\n", i+1, problem)
		}
		return fmt.Errorf("%s has %d validation error(s)", path, len(verr.Problems))
	}

	fmt.Fprintf(out, "✅ %s is valid!\n", path)
	return nil
}
