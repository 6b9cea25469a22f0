package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Artifact names inside the scratch directory.
const (
	DockerfileName = "Dockerfile"
	FileListName   = "filelist.txt"
	ArchiveName    = "packed_env.tar"
)

// Scratch is a temporary directory owned by a single pipeline run.
type Scratch struct {
	Dir string

	once sync.Once
	err  error
}

// NewScratch creates a scratch directory under parent, or under the system
// temporary directory when parent is empty.
func NewScratch(parent string) (*Scratch, error) {
	dir, err := os.MkdirTemp(parent, "envpack-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

func (s *Scratch) Dockerfile() string { return filepath.Join(s.Dir, DockerfileName) }
func (s *Scratch) FileList() string   { return filepath.Join(s.Dir, FileListName) }
func (s *Scratch) Archive() string    { return filepath.Join(s.Dir, ArchiveName) }

// Close removes the scratch directory and everything in it. Calling Close
// more than once is safe and returns the first result.
func (s *Scratch) Close() error {
	s.once.Do(func() {
		if err := os.RemoveAll(s.Dir); err != nil {
			s.err = fmt.Errorf("failed to remove scratch directory: %w", err)
		}
	})
	return s.err
}
