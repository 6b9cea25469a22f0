// Package pipeline turns an environment directory into a container image.
//
// A run renders the build description, lists the environment's files,
// archives them and builds the image, in that order, inside a scratch
// directory that is removed however the run ends.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/archiver"
	"github.com/dosanma1/envpack/internal/builder"
	"github.com/dosanma1/envpack/internal/filelist"
	"github.com/dosanma1/envpack/internal/runner"
	"github.com/dosanma1/envpack/internal/template"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(question string) (bool, error)

// Options configures a pipeline run.
type Options struct {
	// EnvPath is the canonical path of the source environment.
	EnvPath string

	// Image is the name the result is tagged with.
	Image string

	// Template is the build description template. Empty uses the bundled one.
	Template string

	// Placeholder is the token replaced with EnvPath.
	Placeholder string

	Archiver  string
	TarBinary string

	Builder   string
	Binary    string
	Pull      bool
	NoCache   bool
	Platform  string
	BuildArgs map[string]string

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration

	// ScratchParent is where the scratch directory is created.
	ScratchParent string

	// Stdout and Stderr receive output of external tools and the build.
	Stdout io.Writer
	Stderr io.Writer

	// Progress receives the archive progress bar. Nil disables it.
	Progress io.Writer

	// Confirm is asked whether to continue when the template has no
	// placeholder. Nil continues without asking.
	Confirm ConfirmFunc
}

// Result summarizes a successful run.
type Result struct {
	Substitutions int
	Files         int
	Archive       *archiver.Result
	Artifact      *builder.BuildArtifact
	Duration      time.Duration
}

// Pipeline runs the render, list, archive and build stages.
type Pipeline struct {
	log      *logrus.Entry
	opts     Options
	engine   *template.Engine
	lister   *filelist.Lister
	archiver archiver.Archiver
	builder  builder.Builder
}

// New wires a pipeline from opts.
func New(log *logrus.Entry, opts Options) (*Pipeline, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := runner.New(log).WithOutput(opts.Stdout, opts.Stderr)

	a, err := archiver.New(opts.Archiver, archiver.Options{
		Log:       log,
		Runner:    r,
		TarBinary: opts.TarBinary,
		Progress:  opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	name := opts.Builder
	if name == "" {
		name = builder.CLIName
	}
	b, err := builder.GetBuilder(name, builder.Options{
		Log:    log,
		Runner: r,
		Binary: opts.Binary,
		Out:    opts.Stdout,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		log:      log,
		opts:     opts,
		engine:   template.NewEngine(opts.Placeholder),
		lister:   filelist.NewLister(log),
		archiver: a,
		builder:  b,
	}, nil
}

// Run executes every stage in order. Any stage failure is returned as a
// *StageError and stops the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := builder.ValidateImageName(p.opts.Image); err != nil {
		return nil, err
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	scratch, err := NewScratch(p.opts.ScratchParent)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			p.log.Warn(err)
		}
	}()
	p.log.WithField("dir", scratch.Dir).Debug("created scratch directory")

	start := time.Now()
	result := &Result{}

	if err := p.render(scratch, result); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	if err := p.list(ctx, scratch, result); err != nil {
		return nil, &StageError{Stage: StageList, Err: err}
	}

	if err := p.archive(ctx, scratch, result); err != nil {
		return nil, &StageError{Stage: StageArchive, Err: err}
	}

	if err := p.build(ctx, scratch, result); err != nil {
		return nil, &StageError{Stage: StageBuild, Err: err}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (p *Pipeline) render(scratch *Scratch, result *Result) error {
	p.log.WithField("stage", StageRender).Info("rendering build description")

	rendered, err := p.engine.RenderToFile(p.opts.Template, p.opts.EnvPath, scratch.Dockerfile())
	if err != nil {
		return err
	}
	result.Substitutions = rendered.Substitutions

	if rendered.Substitutions > 0 {
		p.log.Debugf("replaced %d occurrence(s) of %s", rendered.Substitutions, p.engine.Placeholder())
		return nil
	}

	p.log.Warnf("template has no %s placeholder, using it unchanged", p.engine.Placeholder())
	if p.opts.Confirm == nil {
		return nil
	}
	ok, err := p.opts.Confirm(fmt.Sprintf("Template has no %s placeholder. Build anyway", p.engine.Placeholder()))
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

func (p *Pipeline) list(ctx context.Context, scratch *Scratch, result *Result) error {
	p.log.WithFields(logrus.Fields{
		"stage": StageList,
		"env":   p.opts.EnvPath,
	}).Info("listing environment files")

	paths, err := p.lister.WriteList(ctx, p.opts.EnvPath, scratch.FileList())
	if err != nil {
		return err
	}
	result.Files = len(paths)
	p.log.Debugf("listed %d paths", len(paths))
	return nil
}

func (p *Pipeline) archive(ctx context.Context, scratch *Scratch, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{
		"stage":    StageArchive,
		"archiver": p.archiver.Name(),
	}).Info("archiving environment")

	res, err := p.archiver.Archive(ctx, scratch.FileList(), scratch.Archive())
	if err != nil {
		return err
	}
	result.Archive = res
	p.log.Infof("archive written: %s", res)
	return nil
}

func (p *Pipeline) build(ctx context.Context, scratch *Scratch, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{
		"stage":   StageBuild,
		"builder": p.builder.Name(),
		"image":   p.opts.Image,
	}).Info("building image")

	artifact, err := p.builder.Build(ctx, &builder.BuildOptions{
		ContextDir: scratch.Dir,
		Dockerfile: scratch.Dockerfile(),
		Image:      p.opts.Image,
		Pull:       p.opts.Pull,
		NoCache:    p.opts.NoCache,
		Platform:   p.opts.Platform,
		BuildArgs:  p.opts.BuildArgs,
	})
	if err != nil {
		return err
	}
	result.Artifact = artifact
	return nil
}
