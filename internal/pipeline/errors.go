package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Stage names a pipeline step.
type Stage string

const (
	StageRender  Stage = "RENDER"
	StageList    Stage = "LIST"
	StageArchive Stage = "ARCHIVE"
	StageBuild   Stage = "BUILD"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitGeneric     = 1
	ExitRender      = 3
	ExitList        = 4
	ExitArchive     = 5
	ExitBuild       = 6
	ExitInterrupted = 130
)

// ErrAborted is returned when the user declines to continue.
var ErrAborted = errors.New("aborted by user")

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return ExitGeneric
	}
	switch stageErr.Stage {
	case StageRender:
		return ExitRender
	case StageList:
		return ExitList
	case StageArchive:
		return ExitArchive
	case StageBuild:
		return ExitBuild
	default:
		return ExitGeneric
	}
}
