package builder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dosanma1/envpack/internal/runner"
)

func TestHint(t *testing.T) {
	scenarios := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown", errors.New("boom"), ""},
		{
			"daemon down",
			&runner.ExitError{Command: "docker build", Code: 1, Stderr: "Cannot connect to the Docker daemon at unix:///var/run/docker.sock."},
			"Docker daemon is not reachable",
		},
		{
			"socket permission",
			fmt.Errorf("docker build: %w", errors.New("permission denied while trying to connect to the Docker daemon socket at unix:///var/run/docker.sock")),
			"No permission",
		},
		{
			"pull denied",
			errors.New("docker build failure: pull access denied for myorg/base, repository does not exist"),
			"myorg/base",
		},
		{"disk full", errors.New("write /var/lib/docker/tmp: No space left on device"), "disk space"},
		{"missing cli", errors.New("docker not found in PATH: exec: \"docker\": executable file not found in $PATH"), "container CLI is missing"},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			got := Hint(s.err)
			if s.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, s.want)
		})
	}
}
