package heavy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirSource serves transcripts saved ahead of time in a directory, either as
// <id>.yaml with title and transcript keys or as <id>.txt holding only the
// transcript.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

type savedVideo struct {
	Title      string `yaml:"title"`
	Transcript string `yaml:"transcript"`
}

func (s *DirSource) Title(ctx context.Context, videoID string) (string, error) {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return "", err
	}
	return video.Title, nil
}

func (s *DirSource) Transcript(ctx context.Context, videoID string) (string, error) {
	video, err := s.load(ctx, videoID)
	if err != nil {
		return "", err
	}
	return video.Transcript, nil
}

func (s *DirSource) load(ctx context.Context, videoID string) (savedVideo, error) {
	if err := ctx.Err(); err != nil {
		return savedVideo{}, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, videoID+".yaml"))
	if err == nil {
		var video savedVideo
		if err := yaml.Unmarshal(data, &video); err != nil {
			return savedVideo{}, fmt.Errorf("parsing saved video %s: %w", videoID, err)
		}
		return video, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return savedVideo{}, fmt.Errorf("reading saved video %s: %w", videoID, err)
	}

	data, err = os.ReadFile(filepath.Join(s.dir, videoID+".txt"))
	if errors.Is(err, os.ErrNotExist) {
		return savedVideo{}, fmt.Errorf("%w: %s", ErrNoTranscript, videoID)
	}
	if err != nil {
		return savedVideo{}, fmt.Errorf("reading transcript %s: %w", videoID, err)
	}
	return savedVideo{Transcript: strings.TrimSpace(string(data))}, nil
}
