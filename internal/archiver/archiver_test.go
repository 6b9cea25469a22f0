package archiver

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/envpack/internal/filelist"
	"github.com/dosanma1/envpack/internal/runner"
)

type entry struct {
	typeflag byte
	linkname string
	content  string
}

type fixture struct {
	base     string
	root     string
	external string
	list     string
	archive  string
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return logrus.NewEntry(log)
}

// newFixture lays out an environment with one regular file and one link to a
// file outside the environment, and writes its file list.
func newFixture(t *testing.T) fixture {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	f := fixture{
		base:     base,
		root:     filepath.Join(base, "opt/envs/demo"),
		external: filepath.Join(base, "usr/lib/libx.so"),
		list:     filepath.Join(base, "filelist.txt"),
		archive:  filepath.Join(base, "packed_env.tar"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.external), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "bin/tool"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(f.external, []byte("ELF"), 0644))
	require.NoError(t, os.Symlink(f.external, filepath.Join(f.root, "lib/libx.so")))

	_, err = filelist.NewLister(testLog()).WriteList(context.Background(), f.root, f.list)
	require.NoError(t, err)
	return f
}

func name(p string) string {
	return strings.TrimPrefix(p, "/")
}

func readTar(t *testing.T, path string) map[string]entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries := make(map[string]entry)
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(tr)
		require.NoError(t, err)

		n := strings.TrimSuffix(hdr.Name, "/")
		_, dup := entries[n]
		require.False(t, dup, "duplicate entry %s", n)
		entries[n] = entry{typeflag: hdr.Typeflag, linkname: hdr.Linkname, content: string(content)}
	}
	return entries
}

func assertArchive(t *testing.T, f fixture, result *Result) {
	t.Helper()
	entries := readTar(t, f.archive)

	tool, ok := entries[name(filepath.Join(f.root, "bin/tool"))]
	require.True(t, ok, "bin/tool missing from %v", entries)
	assert.Equal(t, byte(tar.TypeReg), tool.typeflag)
	assert.Equal(t, "#!/bin/sh\n", tool.content)

	link, ok := entries[name(filepath.Join(f.root, "lib/libx.so"))]
	require.True(t, ok, "lib/libx.so missing")
	assert.Equal(t, byte(tar.TypeSymlink), link.typeflag)
	assert.Equal(t, f.external, link.linkname)
	assert.Empty(t, link.content)

	ext, ok := entries[name(f.external)]
	require.True(t, ok, "external target missing")
	assert.Equal(t, byte(tar.TypeReg), ext.typeflag)
	assert.Equal(t, "ELF", ext.content)

	assertExactlyListed(t, f.list, f.archive, result)

	raw, err := os.ReadFile(f.archive)
	require.NoError(t, err)
	assert.Equal(t, f.archive, result.Path)
	assert.Equal(t, int64(len(raw)), result.Size)
	assert.Equal(t, digest.FromBytes(raw), result.Digest)
}

// assertExactlyListed checks that the archive holds one entry per listed path
// and nothing else.
func assertExactlyListed(t *testing.T, listPath, archivePath string, result *Result) {
	t.Helper()
	paths, err := filelist.Read(listPath)
	require.NoError(t, err)

	want := make([]string, 0, len(paths))
	for _, p := range paths {
		want = append(want, name(p))
	}

	entries := readTar(t, archivePath)
	got := make([]string, 0, len(entries))
	for n := range entries {
		got = append(got, n)
	}

	assert.ElementsMatch(t, want, got)
	assert.Equal(t, len(paths), result.Entries)
}

// archivers returns the archivers available on this machine.
func archivers() []string {
	kinds := []string{Native}
	if _, err := exec.LookPath("tar"); err == nil {
		kinds = append(kinds, Tar)
	}
	return kinds
}

func TestArchiveDoesNotDescendListedDirectories(t *testing.T) {
	for _, kind := range archivers() {
		t.Run(kind, func(t *testing.T) {
			base, err := filepath.EvalSymlinks(t.TempDir())
			require.NoError(t, err)

			// env/data links to shared/data, which holds v1 and cur -> v1.
			// Following links reaches shared/data/cur only as v1, so the
			// list leaves cur out and the archive must too.
			root := filepath.Join(base, "env")
			shared := filepath.Join(base, "shared", "data")
			require.NoError(t, os.MkdirAll(root, 0755))
			require.NoError(t, os.MkdirAll(shared, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(shared, "v1"), []byte("v1"), 0644))
			require.NoError(t, os.Symlink("v1", filepath.Join(shared, "cur")))
			require.NoError(t, os.Symlink(shared, filepath.Join(root, "data")))

			list := filepath.Join(base, "filelist.txt")
			paths, err := filelist.NewLister(testLog()).WriteList(context.Background(), root, list)
			require.NoError(t, err)
			require.Equal(t, []string{
				root,
				filepath.Join(root, "data"),
				shared,
				filepath.Join(shared, "v1"),
			}, paths)

			a, err := New(kind, Options{Log: testLog(), Runner: runner.New(testLog()).WithOutput(nil, nil)})
			require.NoError(t, err)

			archive := filepath.Join(base, "packed_env.tar")
			result, err := a.Archive(context.Background(), list, archive)
			require.NoError(t, err)

			assertExactlyListed(t, list, archive, result)
			assert.NotContains(t, readTar(t, archive), name(filepath.Join(shared, "cur")))
		})
	}
}

func TestNativeArchive(t *testing.T) {
	f := newFixture(t)

	a, err := New(Native, Options{Log: testLog()})
	require.NoError(t, err)
	assert.Equal(t, Native, a.Name())

	result, err := a.Archive(context.Background(), f.list, f.archive)
	require.NoError(t, err)
	assertArchive(t, f, result)
}

func TestNativeArchiveProgress(t *testing.T) {
	f := newFixture(t)
	var progress bytes.Buffer

	a, err := New(Native, Options{Log: testLog(), Progress: &progress})
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), f.list, f.archive)
	require.NoError(t, err)
	assert.NotEmpty(t, progress.String())
}

func TestTarArchive(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}
	f := newFixture(t)

	a, err := New(Tar, Options{Log: testLog(), Runner: runner.New(testLog()).WithOutput(nil, nil)})
	require.NoError(t, err)
	assert.Equal(t, Tar, a.Name())

	result, err := a.Archive(context.Background(), f.list, f.archive)
	require.NoError(t, err)
	assertArchive(t, f, result)
}

func TestArchiveVanishedPath(t *testing.T) {
	for _, kind := range []string{Native, Tar} {
		t.Run(kind, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, os.Remove(filepath.Join(f.root, "bin/tool")))

			a, err := New(kind, Options{Log: testLog(), Runner: runner.New(testLog()).WithOutput(nil, nil)})
			require.NoError(t, err)

			_, err = a.Archive(context.Background(), f.list, f.archive)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "listed path unavailable")

			_, statErr := os.Stat(f.archive)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestTarArchiveMissingBinary(t *testing.T) {
	f := newFixture(t)

	a, err := New(Tar, Options{Log: testLog(), TarBinary: "envpack-no-such-tar"})
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), f.list, f.archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envpack-no-such-tar not found")
}

func TestTarArchiveLocale(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	record := filepath.Join(dir, "locale")
	bin := filepath.Join(dir, "tar")
	// Invoked as: tar -c -f ARCHIVE --no-recursion -T LIST
	script := "#!/bin/sh\necho \"$LC_ALL\" > " + record + "\n: > \"$3\"\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	a, err := New(Tar, Options{Log: testLog(), Runner: runner.New(testLog()).WithOutput(nil, nil), TarBinary: bin})
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), f.list, f.archive)
	require.NoError(t, err)

	locale, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Equal(t, "C\n", string(locale))
}

func TestNewUnknown(t *testing.T) {
	_, err := New("zip", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `archiver "zip" not found`)
}

func TestNativeArchiveCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := New(Native, Options{Log: testLog()})
	require.NoError(t, err)

	_, err = a.Archive(ctx, f.list, f.archive)
	assert.ErrorIs(t, err, context.Canceled)
}
