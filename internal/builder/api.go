package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	dockerarchive "github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/sirupsen/logrus"
)

// APIName identifies the Docker Engine API builder.
const APIName = "api"

// ImageBuildClient is the part of the Docker Engine API client the api
// builder needs.
type ImageBuildClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	Close() error
}

// APIBuilder builds through the Docker Engine API.
type APIBuilder struct {
	log    *logrus.Entry
	out    io.Writer
	client ImageBuildClient
}

// NewAPIBuilder creates a new API builder. The engine client is created on
// first use from the DOCKER_* environment unless one is injected.
func NewAPIBuilder(opts Options) *APIBuilder {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &APIBuilder{log: opts.Log, out: out, client: opts.Client}
}

// Name returns the builder identifier
func (b *APIBuilder) Name() string {
	return APIName
}

// Validate validates the build options
func (b *APIBuilder) Validate(opts *BuildOptions) error {
	if err := validateCommon(opts); err != nil {
		return err
	}
	_, err := dockerfileInContext(opts)
	return err
}

// Build streams the context directory to the engine and waits for the build
// to finish. Errors reported in the build stream fail the build.
func (b *APIBuilder) Build(ctx context.Context, opts *BuildOptions) (*BuildArtifact, error) {
	if err := b.Validate(opts); err != nil {
		return nil, err
	}
	dockerfile, err := dockerfileInContext(opts)
	if err != nil {
		return nil, err
	}

	cli := b.client
	if cli == nil {
		c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create docker client: %w", err)
		}
		defer c.Close()
		cli = c
	}

	buildCtx, err := dockerarchive.TarWithOptions(opts.ContextDir, &dockerarchive.TarOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildCtx.Close()

	buildArgs := make(map[string]*string, len(opts.BuildArgs))
	for k, v := range opts.BuildArgs {
		v := v
		buildArgs[k] = &v
	}

	b.log.WithField("image", opts.Image).Debug("sending build context to docker daemon")

	resp, err := cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{opts.Image},
		Dockerfile: dockerfile,
		BuildArgs:  buildArgs,
		NoCache:    opts.NoCache,
		PullParent: opts.Pull,
		Platform:   opts.Platform,
		Remove:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker build: %w", err)
	}
	defer resp.Body.Close()

	var imageID string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var result struct {
			ID string `json:"ID"`
		}
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			b.log.Debugf("unable to parse build output: %v", err)
			return
		}
		imageID = result.ID
	}

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, b.out, 0, false, auxCallback); err != nil {
		var jm *jsonmessage.JSONError
		if errors.As(err, &jm) {
			return nil, fmt.Errorf("docker build failure: %w", err)
		}
		return nil, fmt.Errorf("unable to stream build output: %w", err)
	}

	return &BuildArtifact{Image: opts.Image, ID: imageID, Builder: APIName}, nil
}
