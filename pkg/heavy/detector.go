package heavy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kcaldas/tubechan/pkg/logging"
)

// ErrNoTranscript is returned when a linked video has no usable transcript.
var ErrNoTranscript = errors.New("no transcript available")

const unknownTitle = "Unknown Video"

var (
	urlPattern     = regexp.MustCompile(`\b(https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;%=]+|www\.[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;%=]+)\b`)
	videoIDPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:.*?v=|embed/|v/|shorts/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	titlePattern   = regexp.MustCompile(`título: "(.*?)"`)
)

// Content is heavy content found in a user message.
type Content struct {
	URL     string
	VideoID string
	Label   string
	Compact string
	Full    string
}

// Detector finds heavy content in a user message. It returns nil when the
// message carries none.
type Detector interface {
	Detect(ctx context.Context, message string) (*Content, error)
}

// TranscriptSource supplies video metadata. Fetching is done elsewhere.
type TranscriptSource interface {
	Title(ctx context.Context, videoID string) (string, error)
	Transcript(ctx context.Context, videoID string) (string, error)
}

// LinkDetector turns YouTube links into a compact rendering that keeps only
// the link and a full rendering that embeds the transcript.
type LinkDetector struct {
	source    TranscriptSource
	templates *Templates
	logger    logging.Logger
}

// DetectorOption configures a LinkDetector.
type DetectorOption func(*LinkDetector)

func WithTemplates(templates *Templates) DetectorOption {
	return func(d *LinkDetector) {
		if templates != nil {
			d.templates = templates
		}
	}
}

func WithLogger(logger logging.Logger) DetectorOption {
	return func(d *LinkDetector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewLinkDetector(source TranscriptSource, opts ...DetectorOption) *LinkDetector {
	d := &LinkDetector{
		source:    source,
		templates: DefaultTemplates(),
		logger:    logging.NewComponentLogger("heavy"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect implements Detector.
func (d *LinkDetector) Detect(ctx context.Context, message string) (*Content, error) {
	url := FindURL(message)
	if url == "" {
		return nil, nil
	}
	videoID := VideoID(url)
	if videoID == "" {
		return nil, nil
	}

	title, err := d.source.Title(ctx, videoID)
	if err != nil || strings.TrimSpace(title) == "" {
		d.logger.Debug("video title unavailable", "video_id", videoID, "error", err)
		title = unknownTitle
	}

	transcript, err := d.source.Transcript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetching transcript for %s: %w", videoID, err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTranscript, videoID)
	}

	fields := Fields{
		Message:    withoutURL(message, url),
		URL:        url,
		Title:      title,
		Transcript: transcript,
	}
	compact, err := d.templates.RenderCompact(fields)
	if err != nil {
		return nil, err
	}
	full, err := d.templates.RenderFull(fields)
	if err != nil {
		return nil, err
	}

	d.logger.Info("youtube link detected", "video_id", videoID, "title", title, "transcript_chars", len(transcript))
	return &Content{URL: url, VideoID: videoID, Label: title, Compact: compact, Full: full}, nil
}

// Recover rebuilds heavy content from a stored full rendering, for sessions
// saved without their registry. It reports false when text does not look
// like one.
func (d *LinkDetector) Recover(text string) (*Content, bool) {
	url := FindURL(text)
	if url == "" || VideoID(url) == "" || !d.templates.HasMarker(text) {
		return nil, false
	}

	title := unknownTitle
	if match := titlePattern.FindStringSubmatch(text); match != nil {
		title = match[1]
	}

	message, _, _ := strings.Cut(text, "\n\n")
	if strings.Contains(message, url) || d.templates.HasMarker(message) {
		message = ""
	}
	compact, err := d.templates.RenderCompact(Fields{Message: strings.TrimSpace(message), URL: url, Title: title})
	if err != nil {
		return nil, false
	}
	return &Content{URL: url, VideoID: VideoID(url), Label: title, Compact: compact, Full: text}, true
}

// FindURL returns the first URL in text.
func FindURL(text string) string {
	return strings.TrimSpace(urlPattern.FindString(text))
}

// VideoID extracts the 11 character YouTube id from url.
func VideoID(url string) string {
	match := videoIDPattern.FindStringSubmatch(url)
	if match == nil {
		return ""
	}
	return match[1]
}

func withoutURL(message, url string) string {
	before, after, _ := strings.Cut(message, url)
	return strings.TrimSpace(strings.TrimSpace(before) + " " + strings.TrimSpace(after))
}
