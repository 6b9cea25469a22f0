package archiver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dosanma1/envpack/internal/filelist"
	"github.com/dosanma1/envpack/internal/runner"
)

// tarArchiver delegates to the external tar binary.
type tarArchiver struct {
	log    *logrus.Entry
	runner *runner.Runner
	binary string
}

func (a *tarArchiver) Name() string {
	return Tar
}

// Archive runs "tar -c -f ARCHIVE --no-recursion -T LIST". Directories in
// the list already carry their contents as separate lines, so recursion
// would only duplicate entries.
func (a *tarArchiver) Archive(ctx context.Context, listPath, archivePath string) (*Result, error) {
	paths, err := filelist.Read(listPath)
	if err != nil {
		return nil, err
	}
	if err := checkPaths(paths); err != nil {
		return nil, err
	}

	if _, err := runner.LookPath(a.binary); err != nil {
		return nil, err
	}

	if err := a.runner.Run(ctx, "", a.binary, "-c", "-f", archivePath, "--no-recursion", "-T", listPath); err != nil {
		return nil, err
	}

	size, dgst, err := fileDigest(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to digest archive: %w", err)
	}

	return &Result{
		Path:    archivePath,
		Size:    size,
		Digest:  dgst,
		Entries: len(paths),
	}, nil
}
