package archiver

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	dockerarchive "github.com/docker/docker/pkg/archive"
	"github.com/opencontainers/go-digest"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/filelist"
	"github.com/dosanma1/envpack/pkg/xos"
)

// nativeArchiver writes one tar entry per listed path. Directories are not
// descended: their contents are packed only when listed themselves.
type nativeArchiver struct {
	log      *logrus.Entry
	progress io.Writer
}

func (a *nativeArchiver) Name() string {
	return Native
}

func (a *nativeArchiver) Archive(ctx context.Context, listPath, archivePath string) (*Result, error) {
	paths, err := filelist.Read(listPath)
	if err != nil {
		return nil, err
	}
	if err := checkPaths(paths); err != nil {
		return nil, err
	}

	a.log.WithField("entries", len(paths)).Debug("packing listed paths")

	out, err := xos.NewPendingFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Cleanup()

	digester := digest.Canonical.Digester()
	size := &countingWriter{}
	writers := []io.Writer{out, digester.Hash(), size}
	bar := newProgress(a.progress)
	if bar != nil {
		writers = append(writers, bar)
	}

	tw := tar.NewWriter(io.MultiWriter(writers...))
	entries := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			finish(bar)
			return nil, err
		}
		written, err := a.writeEntry(ctx, tw, p)
		if err != nil {
			finish(bar)
			return nil, fmt.Errorf("failed to write archive: %w", err)
		}
		if written {
			entries++
		}
	}
	err = tw.Close()
	finish(bar)
	if err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	if err := out.Chmod(0644); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := out.CloseAtomically(); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	return &Result{
		Path:    archivePath,
		Size:    size.n,
		Digest:  digester.Digest(),
		Entries: entries,
	}, nil
}

// writeEntry adds path to tw under its name without the leading slash. Links
// are stored as links. Sockets are skipped, as tar does.
func (a *nativeArchiver) writeEntry(ctx context.Context, tw *tar.Writer, path string) (bool, error) {
	name := strings.TrimLeft(path, "/")
	if name == "" {
		return false, nil
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return false, fmt.Errorf("listed path unavailable: %w", err)
	}
	if fi.Mode()&os.ModeSocket != 0 {
		a.log.WithField("path", path).Debug("socket ignored")
		return false, nil
	}

	var link string
	if fi.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return false, err
		}
	}

	hdr, err := dockerarchive.FileInfoHeader(name, fi, link)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return false, err
	}

	if hdr.Typeflag != tar.TypeReg || hdr.Size == 0 {
		return true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("listed path unavailable: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, ctxReader{ctx: ctx, r: f}); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func finish(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
