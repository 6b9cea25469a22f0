// Package archiver packs a file list into a single tar archive.
//
// Symbolic links are stored as links, never dereferenced, so that extracting
// the archive inside an image reproduces the original link topology. Entry
// names are the listed absolute paths without their leading slash.
package archiver

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/runner"
)

const (
	// Native packs with the built-in tar writer.
	Native = "native"

	// Tar packs with the external tar binary.
	Tar = "tar"
)

// Archiver creates an archive from a file list.
type Archiver interface {
	// Name returns the archiver identifier.
	Name() string

	// Archive packs the paths listed in listPath into archivePath.
	Archive(ctx context.Context, listPath, archivePath string) (*Result, error)
}

// Result describes a written archive.
type Result struct {
	Path    string
	Size    int64
	Digest  digest.Digest
	Entries int
}

// String formats the result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s (%s, %d entries, %s)", r.Path, humanize.Bytes(uint64(r.Size)), r.Entries, r.Digest)
}

// Options configures archiver construction.
type Options struct {
	Log *logrus.Entry

	// Runner executes the external tar binary.
	Runner *runner.Runner

	// TarBinary is the tar executable for the Tar archiver. Defaults to "tar".
	TarBinary string

	// Progress receives a byte counter while packing. Nil disables it.
	Progress io.Writer
}

// New returns the archiver registered under name.
func New(name string, opts Options) (Archiver, error) {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	switch name {
	case Native, "":
		return &nativeArchiver{log: opts.Log, progress: opts.Progress}, nil
	case Tar:
		if opts.Runner == nil {
			opts.Runner = runner.New(opts.Log)
		}
		bin := opts.TarBinary
		if bin == "" {
			bin = "tar"
		}
		// A fixed locale keeps tar's diagnostics stable for error reports.
		return &tarArchiver{log: opts.Log, runner: opts.Runner.WithEnv("LC_ALL=C"), binary: bin}, nil
	default:
		return nil, fmt.Errorf("archiver %q not found (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the available archivers.
func Names() []string {
	names := []string{Native, Tar}
	sort.Strings(names)
	return names
}

// checkPaths fails on the first listed path that no longer exists.
func checkPaths(paths []string) error {
	for _, p := range paths {
		if _, err := os.Lstat(p); err != nil {
			return fmt.Errorf("listed path unavailable: %w", err)
		}
	}
	return nil
}

// newProgress mirrors the download bar used elsewhere in the CLI: a spinner
// with a byte counter, since the archive size is unknown upfront.
func newProgress(w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		return nil
	}
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("Packing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}

// fileDigest returns the size and canonical digest of the file at path.
func fileDigest(path string) (int64, digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	n, err := io.Copy(digester.Hash(), f)
	if err != nil {
		return 0, "", err
	}
	return n, digester.Digest(), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
