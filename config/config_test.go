package config

import (
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-chords/logging"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Serverless || cfg.Timeout != DefaultTimeout || cfg.TempDir != "temp" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.CachePath != "" || cfg.Threshold != 0.75 || cfg.LogLevel != logging.InfoLevel || cfg.InMemoryDecode {
		t.Errorf("got %+v", cfg)
	}
}

func TestFromEnvServerless(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"VERCEL": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Serverless || cfg.Timeout != 50*time.Second || cfg.TempDir != "/tmp" {
		t.Errorf("got %+v", cfg)
	}

	// an explicit timeout still wins
	cfg, err = FromEnv(env(map[string]string{"VERCEL": "1", "CHORDS_TIMEOUT": "20s"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":              "3000",
		"CHORDS_TEMP_DIR":   "/var/tmp/chords",
		"FFMPEG_PATH":       "/opt/ffmpeg/bin/ffmpeg",
		"YTDLP_PATH":        "/usr/local/bin/yt-dlp",
		"CHORDS_CACHE_PATH": "data/cache.db",
		"CHORDS_CACHE_SIZE": "32",
		"CHORDS_THRESHOLD":  "0.6",
		"LOG_LEVEL":         "debug",

		"CHORDS_DECODE_IN_MEMORY": "true",
	}))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "3000" || cfg.TempDir != "/var/tmp/chords" || cfg.YtDlpPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.FFprobePath != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("ffprobe = %s, want sibling of ffmpeg", cfg.FFprobePath)
	}
	if cfg.CachePath != "data/cache.db" || cfg.CacheSize != 32 || cfg.Threshold != 0.6 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.LogLevel != logging.DebugLevel {
		t.Errorf("level = %v", cfg.LogLevel)
	}
	if !cfg.InMemoryDecode {
		t.Error("in-memory decode should be enabled")
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := map[string]string{
		"CHORDS_TIMEOUT":    "soon",
		"CHORDS_CACHE_SIZE": "-1",
		"CHORDS_THRESHOLD":  "1.5",
		"LOG_LEVEL":         "chatty",

		"CHORDS_DECODE_IN_MEMORY": "sometimes",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			if _, err := FromEnv(env(map[string]string{key: value})); err == nil {
				t.Errorf("%s=%s should be rejected", key, value)
			}
		})
	}
}
