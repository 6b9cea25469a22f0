package builder

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/runner"
)

// Options are the dependencies handed to builder factories.
type Options struct {
	Log *logrus.Entry

	// Runner executes external binaries (cli builder).
	Runner *runner.Runner

	// Binary is the container engine CLI (cli builder). Defaults to "docker".
	Binary string

	// Out receives decoded build output (api builder).
	Out io.Writer

	// Client overrides the Docker Engine API client (api builder).
	Client ImageBuildClient
}

// Registry of available builders
var builders = map[string]func(Options) Builder{
	CLIName: func(o Options) Builder { return NewCLIBuilder(o) },
	APIName: func(o Options) Builder { return NewAPIBuilder(o) },
}

// GetBuilder returns a builder instance by name
func GetBuilder(name string, opts Options) (Builder, error) {
	factory, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown builder: %s (available: %s)", name, strings.Join(ListBuilders(), ", "))
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return factory(opts), nil
}

// RegisterBuilder adds a new builder to the registry
func RegisterBuilder(name string, factory func(Options) Builder) {
	builders[name] = factory
}

// ListBuilders returns all registered builder names, sorted
func ListBuilders() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
