// Package ui holds the interactive prompts.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether the user can be prompted.
func Interactive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// AskConfirm prompts for yes/no confirmation
func AskConfirm(prompt string, defaultYes bool) (bool, error) {
	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}
	if defaultYes {
		p.Default = "y"
	}

	_, err := p.Run()
	return confirmResult(err)
}

// confirmResult maps a confirm prompt's error to an answer. Interrupting the
// prompt cancels the run.
func confirmResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, fmt.Errorf("prompt interrupted: %w", context.Canceled)
	default:
		return false, err
	}
}

// Confirmer returns the confirmation to use for a command run. It returns nil,
// meaning proceed without asking, when assumeYes is set or nobody can answer.
func Confirmer(assumeYes, interactive bool) func(question string) (bool, error) {
	if assumeYes || !interactive {
		return nil
	}
	return func(question string) (bool, error) {
		return AskConfirm(question, false)
	}
}
