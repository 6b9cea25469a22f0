package main

import (
	"fmt"
	"os"

	"github.com/dosanma1/envpack/internal/cmd"
	"github.com/dosanma1/envpack/internal/pipeline"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(pipeline.ExitCode(err))
	}
}
