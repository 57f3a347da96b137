// Package history keeps the chat REPL's input history on disk.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultMaxEntries bounds the number of remembered inputs.
const DefaultMaxEntries = 200

// InputHistory remembers what the user typed, newest last, without
// duplicates. Multi-line inputs are stored one per line with \n escaped.
type InputHistory struct {
	mu      sync.Mutex
	path    string
	entries []string
	maxSize int
	persist bool
}

// New returns a history stored at path. An empty path keeps it in memory.
func New(path string, maxSize int) *InputHistory {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	return &InputHistory{path: path, maxSize: maxSize, persist: path != ""}
}

// Add records input and saves the file. Blank input is ignored and a repeated
// input moves to the end.
func (h *InputHistory) Add(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.entries {
		if existing == input {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	h.entries = append(h.entries, input)
	h.trim()
	return h.save()
}

// Entries returns a copy of the history, oldest first.
func (h *InputHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Last returns the most recent input, or "" when there is none.
func (h *InputHistory) Last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Load replaces the in-memory history with the file contents. A missing file
// leaves the history empty.
func (h *InputHistory) Load() error {
	if !h.persist {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	defer file.Close()

	h.entries = h.entries[:0]
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			h.entries = append(h.entries, unescape(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading history file: %w", err)
	}
	h.trim()
	return nil
}

func (h *InputHistory) trim() {
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
}

func (h *InputHistory) save() error {
	if !h.persist {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	var b strings.Builder
	for _, entry := range h.entries {
		b.WriteString(escape(entry))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(h.path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	return nil
}

// escape converts backslashes and newlines so each entry fits on one line.
func escape(input string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(input)
}

func unescape(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if line[i] == '\\' && i+1 < len(line) {
			switch line[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(line[i])
	}
	return b.String()
}
