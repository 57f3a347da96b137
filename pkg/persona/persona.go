// Package persona loads character sheets and renders the system prompt a
// session starts with.
package persona

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// embeddedFS carries the built-in characters and system prompt. Paths inside
// it always use forward slashes.
//
//go:embed characters/* system_prompt.txt
var embeddedFS embed.FS

// ErrCharacterNotFound is returned when no location has the named character.
var ErrCharacterNotFound = errors.New("character not found")

const (
	// DefaultCharacter is used when no character is requested.
	DefaultCharacter = "rumi"

	characterPlaceholder = "{character_sheet}"
	userPlaceholder      = "{user}"
	embeddedRoot         = "characters"
)

var sheetExtensions = []string{".txt", ".yaml", ".yml"}

// Character is a named character sheet.
type Character struct {
	Name   string `yaml:"name"`
	Sheet  string `yaml:"sheet"`
	Source string `yaml:"-"`
}

type Option func(*Loader)

// WithProjectDir overrides the project characters directory.
func WithProjectDir(dir string) Option {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

// WithUserDir overrides the user characters directory.
func WithUserDir(dir string) Option {
	return func(l *Loader) {
		l.userDir = dir
	}
}

// WithSystemPrompt replaces the built-in system prompt template. The template
// may use {character_sheet} and {user}.
func WithSystemPrompt(template string) Option {
	return func(l *Loader) {
		if strings.TrimSpace(template) != "" {
			l.systemPrompt = template
		}
	}
}

// Loader discovers characters with priority project > user > embedded.
type Loader struct {
	projectDir   string
	userDir      string
	systemPrompt string
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{systemPrompt: defaultSystemPrompt()}
	if cwd, err := os.Getwd(); err == nil {
		l.projectDir = filepath.Join(cwd, ".tubechan", "characters")
	}
	if home, err := homedir.Dir(); err == nil {
		l.userDir = filepath.Join(home, ".tubechan", "characters")
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func defaultSystemPrompt() string {
	data, err := embeddedFS.ReadFile("system_prompt.txt")
	if err != nil {
		return characterPlaceholder
	}
	return strings.TrimSpace(string(data))
}

// Load finds the character called name.
func (l *Loader) Load(name string) (Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCharacter
	}

	for _, dir := range []string{l.projectDir, l.userDir} {
		if dir == "" {
			continue
		}
		for _, ext := range sheetExtensions {
			file := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(file)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return Character{}, fmt.Errorf("reading character %s: %w", file, err)
			}
			return parseCharacter(name, ext, file, data)
		}
	}

	for _, ext := range sheetExtensions {
		file := path.Join(embeddedRoot, name+ext)
		data, err := embeddedFS.ReadFile(file)
		if err != nil {
			continue
		}
		return parseCharacter(name, ext, "embedded://"+file, data)
	}

	return Character{}, fmt.Errorf("%w: %s", ErrCharacterNotFound, name)
}

// List returns the names of every discoverable character.
func (l *Loader) List() []string {
	seen := make(map[string]bool)
	collect := func(fsys fs.FS, dir string) {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := path.Ext(entry.Name())
			if isSheetExtension(ext) {
				seen[strings.TrimSuffix(entry.Name(), ext)] = true
			}
		}
	}

	for _, dir := range []string{l.projectDir, l.userDir} {
		if dir != "" {
			collect(os.DirFS(dir), ".")
		}
	}
	collect(embeddedFS, embeddedRoot)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemPrompt renders the system prompt for character talking to userName.
func (l *Loader) SystemPrompt(character Character, userName string) string {
	if userName == "" {
		userName = "User"
	}
	sheet := strings.ReplaceAll(character.Sheet, userPlaceholder, userName)
	prompt := strings.ReplaceAll(l.systemPrompt, characterPlaceholder, sheet)
	return strings.ReplaceAll(prompt, userPlaceholder, userName)
}

func parseCharacter(name, ext, source string, data []byte) (Character, error) {
	character := Character{Name: name, Source: source}
	if ext == ".txt" {
		character.Sheet = strings.TrimSpace(string(data))
		return character, nil
	}

	if err := yaml.Unmarshal(data, &character); err != nil {
		return Character{}, fmt.Errorf("parsing character %s: %w", source, err)
	}
	if character.Name == "" {
		character.Name = name
	}
	character.Sheet = strings.TrimSpace(character.Sheet)
	character.Source = source
	return character, nil
}

func isSheetExtension(ext string) bool {
	for _, candidate := range sheetExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
