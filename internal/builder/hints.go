package builder

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dosanma1/envpack/internal/runner"
)

var (
	pullDeniedRe = regexp.MustCompile(`pull access denied for ([^\s,]+)`)
	noSpaceRe    = regexp.MustCompile(`(?i)no space left on device`)
)

// Hint converts common container engine failures into a suggestion for the
// user. It returns "" when nothing useful can be said.
func Hint(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		msg = exitErr.Stderr + "\n" + msg
	}

	switch {
	case strings.Contains(msg, "Cannot connect to the Docker daemon"),
		strings.Contains(msg, "Is the docker daemon running"):
		return "The Docker daemon is not reachable. Start it, or point DOCKER_HOST at a running engine."
	case strings.Contains(msg, "permission denied") && strings.Contains(msg, "docker.sock"):
		return "No permission to use the Docker socket. Add your user to the docker group or use --binary podman."
	case pullDeniedRe.MatchString(msg):
		image := pullDeniedRe.FindStringSubmatch(msg)[1]
		return "Base image " + image + " could not be pulled. Check the FROM line of the template and your registry login."
	case noSpaceRe.MatchString(msg):
		return "The engine ran out of disk space. Prune unused images with 'docker system prune'."
	case strings.Contains(msg, "not found in PATH"):
		return "The container CLI is missing. Install docker, pass --binary, or use --engine api."
	default:
		return ""
	}
}
