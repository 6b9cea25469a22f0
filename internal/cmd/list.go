package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/envpack/internal/filelist"
	"github.com/dosanma1/envpack/internal/pipeline"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list ENV",
	Short: "Print the files that would be packed for an environment",
	Long: `Print every path under ENV plus the resolved target of every symbolic link
reachable from it, sorted and without duplicates. This is the list the build
command archives.

Examples:
  envpack list /opt/conda/envs/demo
  envpack list /opt/conda/envs/demo --output filelist.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "", "Write the list to a file instead of stdout")
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := envPath(args[0])
	if err != nil {
		return err
	}

	lister := filelist.NewLister(logger)

	if listOutput != "" {
		paths, err := lister.WriteList(cmd.Context(), env, listOutput)
		if err != nil {
			return &pipeline.StageError{Stage: pipeline.StageList, Err: err}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Wrote %d paths to %s\n", len(paths), listOutput)
		return nil
	}

	paths, err := lister.List(cmd.Context(), env)
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StageList, Err: err}
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
	return w.Flush()
}
