// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/RyanBlaney/sonido-chords/logging"
)

const (
	// ServerlessTimeout fits inside a serverless function's execution limit
	ServerlessTimeout = 50 * time.Second
	// DefaultTimeout is the budget for long-running deployments
	DefaultTimeout = 5 * time.Minute
)

// Config holds all service settings
type Config struct {
	Serverless  bool          `json:"serverless"`
	Port        string        `json:"port"`
	Timeout     time.Duration `json:"timeout"`
	TempDir     string        `json:"temp_dir"`
	FFmpegPath  string        `json:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path"`
	YtDlpPath   string        `json:"ytdlp_path"`
	CachePath   string        `json:"cache_path"` // empty disables the cache
	CacheSize   int           `json:"cache_size"`
	Threshold   float64       `json:"threshold"`
	LogLevel    logging.Level `json:"log_level"`
	// InMemoryDecode pipes ffmpeg output into memory instead of a PCM file
	InMemoryDecode bool `json:"in_memory_decode"`
}

// Default returns settings for a long-running local deployment
func Default() Config {
	return Config{
		Port:        "8080",
		Timeout:     DefaultTimeout,
		TempDir:     "temp",
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		YtDlpPath:   "yt-dlp",
		CacheSize:   256,
		Threshold:   0.75,
		LogLevel:    logging.InfoLevel,
	}
}

// Load reads .env if present, then the environment
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if _, ok := get("VERCEL"); ok {
		cfg.Serverless = true
		cfg.Timeout = ServerlessTimeout
		// the only writable directory on serverless hosts
		cfg.TempDir = "/tmp"
	}

	if v, ok := get("PORT"); ok {
		cfg.Port = v
	}
	if v, ok := get("CHORDS_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid CHORDS_TIMEOUT %q: want a positive duration like 90s", v)
		}
		cfg.Timeout = d
	}
	if v, ok := get("CHORDS_TEMP_DIR"); ok {
		cfg.TempDir = v
	}
	if v, ok := get("FFMPEG_PATH"); ok {
		cfg.FFmpegPath = v
	}
	if v, ok := get("FFPROBE_PATH"); ok {
		cfg.FFprobePath = v
	} else if cfg.FFmpegPath != "ffmpeg" {
		// ffprobe usually ships next to ffmpeg
		cfg.FFprobePath = filepath.Join(filepath.Dir(cfg.FFmpegPath), "ffprobe")
	}
	if v, ok := get("YTDLP_PATH"); ok {
		cfg.YtDlpPath = v
	}
	if v, ok := get("CHORDS_CACHE_PATH"); ok {
		cfg.CachePath = v
	}
	if v, ok := get("CHORDS_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid CHORDS_CACHE_SIZE %q", v)
		}
		cfg.CacheSize = n
	}
	if v, ok := get("CHORDS_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return cfg, fmt.Errorf("invalid CHORDS_THRESHOLD %q: want a value in [0,1]", v)
		}
		cfg.Threshold = f
	}
	if v, ok := get("CHORDS_DECODE_IN_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CHORDS_DECODE_IN_MEMORY %q: want true or false", v)
		}
		cfg.InMemoryDecode = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
