package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/pipeline"
	"github.com/dosanma1/envpack/internal/template"
)

var renderTemplate string

var renderCmd = &cobra.Command{
	Use:   "render ENV",
	Short: "Print the build description rendered for an environment",
	Long: `Print the build description that build would use for ENV.

Without --template the bundled description is rendered. Every occurrence of
the placeholder (default {conda_env}) is replaced with ENV.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderTemplate, "template", "", "Build description template (default: bundled)")
}

func runRender(cmd *cobra.Command, args []string) error {
	env, err := envPath(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tmpl := cfg.Template
	if cmd.Flags().Changed("template") {
		tmpl = renderTemplate
	}

	engine := template.NewEngine(cfg.Placeholder)
	result, err := engine.RenderFile(tmpl, env)
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StageRender, Err: err}
	}
	if result.Substitutions == 0 {
		logger.Warnf("template has no %s placeholder, using it unchanged", engine.Placeholder())
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), result.Content)
	return err
}
