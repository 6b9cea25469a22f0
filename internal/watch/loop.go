package watch

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// RebuildFunc rebuilds the image. changed holds the paths that triggered the
// rebuild and is empty for the initial build.
type RebuildFunc func(ctx context.Context, changed []string) error

// Loop runs a rebuild once at start and again after every burst of changes.
type Loop struct {
	log     *logrus.Entry
	quiet   time.Duration
	rebuild RebuildFunc
}

// NewLoop creates a loop that waits for quiet without new events before
// rebuilding.
func NewLoop(log *logrus.Entry, quiet time.Duration, rebuild RebuildFunc) *Loop {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loop{log: log, quiet: quiet, rebuild: rebuild}
}

// Run builds once, then rebuilds on events until ctx is done or events is
// closed. Rebuild failures are logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context, events <-chan FileEvent, errs <-chan error) error {
	l.runRebuild(ctx, nil)

	changed := make(map[string]struct{})
	timer := time.NewTimer(l.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.log.WithError(err).Warn("watch error")
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			changed[ev.Path] = struct{}{}
			timer.Reset(l.quiet)
		case <-timer.C:
			if len(changed) == 0 {
				continue
			}
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			changed = make(map[string]struct{})

			l.log.WithField("changes", len(paths)).Info("environment changed, rebuilding")
			l.runRebuild(ctx, paths)
		}
	}
}

func (l *Loop) runRebuild(ctx context.Context, changed []string) {
	start := time.Now()
	if err := l.rebuild(ctx, changed); err != nil {
		if ctx.Err() != nil {
			return
		}
		l.log.WithError(err).Error("rebuild failed, waiting for further changes")
		return
	}
	l.log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("rebuild finished")
}
