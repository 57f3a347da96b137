package session

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/kcaldas/tubechan/pkg/logging"
	"github.com/kcaldas/tubechan/pkg/memory"
)

// CompressedSuffix selects zstd compression for a session file.
const CompressedSuffix = ".zst"

// ErrChecksumMismatch is returned when a session file was edited in a way
// that no longer matches its transcript and heavy entries.
var ErrChecksumMismatch = errors.New("session checksum mismatch")

// Snapshot is the persisted form of a session.
type Snapshot struct {
	ID         string                    `json:"id"`
	Character  string                    `json:"character,omitempty"`
	UserName   string                    `json:"user_name,omitempty"`
	Transcript memory.Transcript         `json:"chat_history"`
	Heavy      map[int]memory.HeavyEntry `json:"heavy_content,omitempty"`
	Checksum   string                    `json:"checksum,omitempty"`
}

// Checksum is the blake3 digest of the transcript and heavy entries.
func Checksum(snapshot Snapshot) (string, error) {
	heavy := snapshot.Heavy
	if len(heavy) == 0 {
		// An empty registry is omitted on disk and decodes as nil.
		heavy = nil
	}
	payload, err := json.Marshal(struct {
		Transcript memory.Transcript         `json:"t"`
		Heavy      map[int]memory.HeavyEntry `json:"h"`
	}{snapshot.Transcript, heavy})
	if err != nil {
		return "", fmt.Errorf("encoding checksum payload: %w", err)
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Store reads and writes session files. Files ending in CompressedSuffix are
// zstd compressed; plain files may carry comments and trailing commas.
type Store struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  logging.Logger
}

func NewStore(logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewComponentLogger("store")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Store{encoder: encoder, decoder: decoder, logger: logger}, nil
}

// Save writes snapshot to path, replacing any existing file.
func (s *Store) Save(path string, snapshot Snapshot) error {
	checksum, err := Checksum(snapshot)
	if err != nil {
		return err
	}
	snapshot.Checksum = checksum

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if strings.HasSuffix(path, CompressedSuffix) {
		data = s.encoder.EncodeAll(data, nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing session: %w", err)
	}

	s.logger.Debug("session saved", "path", path, "bytes", len(data), "turns", len(snapshot.Transcript))
	return nil
}

// Load reads a snapshot and verifies its checksum when one is present.
func (s *Store) Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.HasSuffix(path, CompressedSuffix) {
		data, err = s.decoder.DecodeAll(data, nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("zstd decompress %s: %w", path, err)
		}
	}

	var snapshot Snapshot
	if err := json.Unmarshal(jsonc.ToJSON(data), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if snapshot.Checksum != "" {
		want, err := Checksum(snapshot)
		if err != nil {
			return Snapshot{}, err
		}
		if want != snapshot.Checksum {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
		}
	}

	s.logger.Debug("session loaded", "path", path, "turns", len(snapshot.Transcript), "heavy", len(snapshot.Heavy))
	return snapshot, nil
}

// Close releases the zstd encoder and decoder.
func (s *Store) Close() {
	s.encoder.Close()
	s.decoder.Close()
}
