package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	doc := `templates:
  - name: brainstorm
    description: rapid idea generation
    system: You are a creative partner.
    temperature: 1.2
  - name: summarize
    text: "Summarize the following:"
  - description: nameless entries are skipped
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	templates, err := LoadTemplates(path)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "brainstorm", templates[0].Name)
	assert.Equal(t, "You are a creative partner.", templates[0].System)
	assert.InDelta(t, 1.2, templates[0].Temperature, 1e-9)
	assert.Equal(t, "summarize", templates[1].Name)
}

func TestLoadTemplates_MissingFile(t *testing.T) {
	templates, err := LoadTemplates(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, templates)
}

func TestLoadTemplates_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates: {nope"), 0o644))

	_, err := LoadTemplates(path)
	assert.Error(t, err)
}
