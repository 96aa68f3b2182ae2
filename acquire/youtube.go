// Package acquire downloads source audio for analysis with yt-dlp.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/RyanBlaney/sonido-chords/logging"
)

var (
	// ErrToolNotInstalled is returned when the yt-dlp binary cannot be executed
	ErrToolNotInstalled = errors.New("yt-dlp not installed")
	// ErrInvalidLocator is returned when no video id can be read from a locator
	ErrInvalidLocator = errors.New("invalid YouTube URL")
)

var (
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=[\w-]+`),
		regexp.MustCompile(`^https?://(www\.)?youtube\.com/shorts/[\w-]+`),
		regexp.MustCompile(`^https?://youtu\.be/[\w-]+`),
		regexp.MustCompile(`^https?://music\.youtube\.com/watch\?v=[\w-]+`),
	}
	videoIDPattern = regexp.MustCompile(`^[\w-]+$`)
)

// IsYouTubeURL checks if the given string is a YouTube URL
func IsYouTubeURL(url string) bool {
	for _, pattern := range youtubePatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// VideoID extracts the video id from a locator. With a "v=" parameter the id
// runs up to the next "&"; otherwise it is the last path segment without its
// query. Ids that are not plain word characters are rejected so they can be
// used as file names.
func VideoID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)

	var id string
	if _, rest, ok := strings.Cut(locator, "v="); ok {
		rest, _, _ = strings.Cut(rest, "v=")
		id, _, _ = strings.Cut(rest, "&")
	} else {
		segment := locator[strings.LastIndex(locator, "/")+1:]
		id, _, _ = strings.Cut(segment, "?")
	}

	if id == "" || !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return id, nil
}

// Config holds yt-dlp configuration
type Config struct {
	YtDlpPath string        `json:"ytdlp_path"`
	Format    string        `json:"format"`  // yt-dlp -f selector
	Timeout   time.Duration `json:"timeout"` // 0 defers to the caller's context
	ExtraArgs []string      `json:"extra_args,omitempty"`
}

// DefaultConfig returns an audio-only configuration
func DefaultConfig() Config {
	return Config{
		YtDlpPath: "yt-dlp",
		Format:    "bestaudio",
	}
}

// Metadata is the subset of yt-dlp's JSON description used for logging and caching
type Metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"` // seconds
	Ext      string  `json:"ext"`
	Filesize int64   `json:"filesize"`
}

// YtDlp downloads audio with the yt-dlp command line tool
type YtDlp struct {
	config Config
	logger logging.Logger
}

// New creates a yt-dlp downloader. A nil logger uses the global one.
func New(config Config, logger logging.Logger) *YtDlp {
	if config.YtDlpPath == "" {
		config.YtDlpPath = "yt-dlp"
	}
	if config.Format == "" {
		config.Format = "bestaudio"
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &YtDlp{
		config: config,
		logger: logger.WithFields(logging.Fields{"component": "ytdlp"}),
	}
}

// Download fetches the audio of url into dir as <id>.<ext> and returns the path
func (y *YtDlp) Download(ctx context.Context, url, dir, id string) (string, error) {
	logger := y.logger.WithFields(logging.Fields{
		"function": "Download",
		"id":       id,
	})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-f", y.config.Format,
		"-o", filepath.Join(dir, id+".%(ext)s"),
	}
	args = append(args, y.config.ExtraArgs...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.config.YtDlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Running yt-dlp", logging.Fields{
		"command": fmt.Sprintf("%s %s", y.config.YtDlpPath, strings.Join(args, " ")),
	})

	start := time.Now()
	if err := cmd.Run(); err != nil {
		err = y.execError(err, stderr.String())
		logger.Error(err, "Download failed")
		return "", err
	}

	path, err := downloadedFile(dir, id)
	if err != nil {
		return "", err
	}

	fields := logging.Fields{
		"path":          path,
		"download_time": time.Since(start).Seconds(),
	}
	if info, err := os.Stat(path); err == nil {
		fields["size"] = humanize.Bytes(uint64(info.Size()))
	}
	logger.Info("Audio downloaded", fields)

	return path, nil
}

// Probe fetches the video description without downloading media
func (y *YtDlp) Probe(ctx context.Context, url string) (*Metadata, error) {
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.config.YtDlpPath,
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, y.execError(err, stderr.String())
	}

	return ParseMetadata(stdout.Bytes())
}

// ParseMetadata reads the fields of Metadata from yt-dlp --dump-json output
func ParseMetadata(data []byte) (*Metadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid yt-dlp metadata")
	}

	meta := &Metadata{
		ID:       gjson.GetBytes(data, "id").String(),
		Title:    gjson.GetBytes(data, "title").String(),
		Uploader: gjson.GetBytes(data, "uploader").String(),
		Duration: gjson.GetBytes(data, "duration").Float(),
		Ext:      gjson.GetBytes(data, "ext").String(),
		Filesize: gjson.GetBytes(data, "filesize").Int(),
	}
	if meta.Filesize == 0 {
		meta.Filesize = gjson.GetBytes(data, "filesize_approx").Int()
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("yt-dlp metadata has no id")
	}
	return meta, nil
}

// CheckAvailability reports ErrToolNotInstalled when yt-dlp is missing
func (y *YtDlp) CheckAvailability() error {
	if _, err := exec.LookPath(y.config.YtDlpPath); err != nil {
		return y.execError(err, "")
	}
	return nil
}

func (y *YtDlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.config.Timeout > 0 {
		return context.WithTimeout(ctx, y.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (y *YtDlp) execError(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w at %q: install with `pip install yt-dlp` or `brew install yt-dlp`, or set YTDLP_PATH", ErrToolNotInstalled, y.config.YtDlpPath)
	}
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		return fmt.Errorf("yt-dlp failed: %w (stderr: %s)", err, stderr)
	}
	return fmt.Errorf("yt-dlp failed: %w", err)
}

// downloadedFile finds the finished <id>.<ext> file yt-dlp wrote into dir
func downloadedFile(dir, id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp produced no file for %s in %s", id, dir)
}
