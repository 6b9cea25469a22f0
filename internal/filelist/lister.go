package filelist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/pkg/xos"
)

// Lister enumerates environment trees.
type Lister struct {
	log *logrus.Entry
}

// NewLister creates a new lister.
func NewLister(log *logrus.Entry) *Lister {
	return &Lister{log: log}
}

// List returns the sorted, unique absolute paths making up the tree at root.
func (l *Lister) List(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("environment %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("environment %s is not a directory", root)
	}

	set := make(map[string]struct{})

	if err := l.entries(ctx, root, set); err != nil {
		return nil, err
	}
	direct := len(set)

	if err := l.resolved(ctx, root, set); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	l.log.WithFields(logrus.Fields{
		"root":     root,
		"entries":  direct,
		"external": len(paths) - direct,
	}).Debug("file list built")

	return paths, nil
}

// WriteList builds the list for root and writes it to out, one path per line.
func (l *Lister) WriteList(ctx context.Context, root, out string) ([]string, error) {
	paths, err := l.List(ctx, root)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}

	if err := xos.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file list: %w", err)
	}

	return paths, nil
}

// entries adds every entry under root without following links.
func (l *Lister) entries(ctx context.Context, root string, set map[string]struct{}) error {
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, _ *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set[path] = struct{}{}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate %s: %w", root, err)
	}
	return nil
}

// resolved follows links under root and adds the canonical path of every
// entry it reaches. Each real directory is descended once, which also breaks
// link cycles.
func (l *Lister) resolved(ctx context.Context, root string, set map[string]struct{}) error {
	visited := make(map[string]bool)

	err := godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				if de.IsSymlink() || errors.Is(err, fs.ErrNotExist) {
					l.log.WithField("path", path).WithError(err).Debug("unresolvable link, target not listed")
					return godirwalk.SkipThis
				}
				return err
			}
			set[real] = struct{}{}

			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil || !isDir {
				return nil
			}
			if visited[real] {
				l.log.WithFields(logrus.Fields{"path": path, "target": real}).Debug("directory already visited")
				return godirwalk.SkipThis
			}
			visited[real] = true
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if errors.Is(err, fs.ErrNotExist) {
				l.log.WithField("path", path).Debug("entry vanished during walk")
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
	})
	if err != nil {
		return fmt.Errorf("failed to resolve links under %s: %w", root, err)
	}
	return nil
}

// Read loads a file list written by WriteList.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file list: %w", err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}
	return paths, nil
}
