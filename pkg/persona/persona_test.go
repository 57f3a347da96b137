package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolatedLoader(t *testing.T) (*Loader, string, string) {
	project := t.TempDir()
	user := t.TempDir()
	return NewLoader(WithProjectDir(project), WithUserDir(user)), project, user
}

func TestLoader_LoadEmbedded(t *testing.T) {
	loader, _, _ := isolatedLoader(t)

	character, err := loader.Load("")

	require.NoError(t, err)
	assert.Equal(t, DefaultCharacter, character.Name)
	assert.Contains(t, character.Sheet, "Rumi")
	assert.Equal(t, "embedded://characters/rumi.txt", character.Source)
}

func TestLoader_LoadEmbeddedYAML(t *testing.T) {
	loader, _, _ := isolatedLoader(t)

	character, err := loader.Load("tutor")

	require.NoError(t, err)
	assert.Equal(t, "Tutor", character.Name)
	assert.True(t, strings.HasPrefix(character.Sheet, "Nome: Tutor"))
}

func TestLoader_Priority(t *testing.T) {
	loader, project, user := isolatedLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(user, "rumi.txt"), []byte("user rumi"), 0644))

	character, err := loader.Load("rumi")
	require.NoError(t, err)
	assert.Equal(t, "user rumi", character.Sheet)

	require.NoError(t, os.WriteFile(filepath.Join(project, "rumi.yaml"), []byte("sheet: project rumi\n"), 0644))

	character, err = loader.Load("rumi")
	require.NoError(t, err)
	assert.Equal(t, "project rumi", character.Sheet)
	assert.Equal(t, "rumi", character.Name)
}

func TestLoader_NotFound(t *testing.T) {
	loader, _, _ := isolatedLoader(t)

	_, err := loader.Load("nobody")

	assert.ErrorIs(t, err, ErrCharacterNotFound)
}

func TestLoader_InvalidYAML(t *testing.T) {
	loader, project, _ := isolatedLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, "broken.yaml"), []byte("sheet: [oops"), 0644))

	_, err := loader.Load("broken")

	assert.Error(t, err)
}

func TestLoader_List(t *testing.T) {
	loader, project, user := isolatedLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, "zed.txt"), []byte("z"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(user, "rumi.txt"), []byte("dup"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(user, "notes.md"), []byte("ignored"), 0644))

	assert.Equal(t, []string{"rumi", "tutor", "zed"}, loader.List())
}

func TestLoader_SystemPrompt(t *testing.T) {
	loader := NewLoader(WithSystemPrompt("Talk to {user}.\n{character_sheet}"))

	prompt := loader.SystemPrompt(Character{Sheet: "Ask {user} questions."}, "Ana")

	assert.Equal(t, "Talk to Ana.\nAsk Ana questions.", prompt)
}

func TestLoader_DefaultSystemPrompt(t *testing.T) {
	loader, _, _ := isolatedLoader(t)
	character, err := loader.Load("rumi")
	require.NoError(t, err)

	prompt := loader.SystemPrompt(character, "")

	assert.Contains(t, prompt, "Rumi")
	assert.Contains(t, prompt, "User")
	assert.NotContains(t, prompt, "{character_sheet}")
	assert.NotContains(t, prompt, "{user}")
}
