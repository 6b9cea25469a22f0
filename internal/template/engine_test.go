package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name          string
		template      string
		want          string
		substitutions int
	}{
		{
			name:          "single placeholder",
			template:      "ENV PATH={conda_env}/bin:$PATH\n",
			want:          "ENV PATH=/env/foo/bin:$PATH\n",
			substitutions: 1,
		},
		{
			name:          "every occurrence replaced",
			template:      "A={conda_env}\nB={conda_env}/lib {conda_env}\n",
			want:          "A=/env/foo\nB=/env/foo/lib /env/foo\n",
			substitutions: 3,
		},
		{
			name:     "no placeholder passes through",
			template: "FROM scratch\nADD packed_env.tar /\n",
			want:     "FROM scratch\nADD packed_env.tar /\n",
		},
		{
			name:     "other braces untouched",
			template: "RUN echo ${HOME} {other}\n",
			want:     "RUN echo ${HOME} {other}\n",
		},
		{
			name: "empty template",
		},
	}

	e := NewEngine("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Render(tt.template, "/env/foo")
			assert.Equal(t, tt.want, got.Content)
			assert.Equal(t, tt.substitutions, got.Substitutions)
		})
	}
}

func TestRenderCustomPlaceholder(t *testing.T) {
	e := NewEngine("@@ENV@@")
	assert.Equal(t, "@@ENV@@", e.Placeholder())

	got := e.Render("X=@@ENV@@ Y={conda_env}", "/opt/envs/demo")
	assert.Equal(t, "X=/opt/envs/demo Y={conda_env}", got.Content)
	assert.Equal(t, 1, got.Substitutions)
}

func TestRenderToFile(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "Dockerfile.tmpl")
	outPath := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(tmplPath, []byte("ENV P={conda_env}\n"), 0644))

	result, err := NewEngine("").RenderToFile(tmplPath, "/env/foo", outPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Substitutions)

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "ENV P=/env/foo\n", string(written))
}

func TestRenderToFileUnreadableTemplate(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "Dockerfile")

	_, err := NewEngine("").RenderToFile(filepath.Join(dir, "missing"), "/env/foo", outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read template file")

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDefaultTemplate(t *testing.T) {
	content := string(DefaultTemplate())
	assert.Contains(t, content, DefaultPlaceholder)
	assert.Contains(t, content, "packed_env.tar")

	result, err := NewEngine("").RenderFile("", "/opt/envs/demo")
	require.NoError(t, err)
	assert.False(t, strings.Contains(result.Content, DefaultPlaceholder))
	assert.Contains(t, result.Content, "/opt/envs/demo/bin")
}
