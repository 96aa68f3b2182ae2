package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		locator string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?feature=share&v=abc-_123", "abc-_123", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=xyz", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/aBcDeF", "aBcDeF", false},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"", "", true},
		{"https://youtu.be/", "", true},
		{"https://www.youtube.com/watch?v=&list=1", "", true},
		{"https://example.com/watch?v=../../etc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := VideoID(tt.locator)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocator) {
					t.Errorf("err = %v, want ErrInvalidLocator", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("VideoID = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestIsYouTubeURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":   true,
		"https://youtube.com/shorts/abc":                true,
		"https://youtu.be/dQw4w9WgXcQ":                  true,
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ": true,
		"https://vimeo.com/123":                         false,
		"dQw4w9WgXcQ":                                   false,
	}
	for url, want := range tests {
		if got := IsYouTubeURL(url); got != want {
			t.Errorf("IsYouTubeURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestParseMetadata(t *testing.T) {
	data := []byte(`{"id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","uploader":"Rick Astley","duration":212,"ext":"webm","filesize_approx":3456789,"formats":[{"format_id":"251"}]}`)

	meta, err := ParseMetadata(data)
	if err != nil {
		t.Fatal(err)
	}
	if meta.ID != "dQw4w9WgXcQ" || meta.Title != "Never Gonna Give You Up" || meta.Uploader != "Rick Astley" {
		t.Errorf("got %+v", meta)
	}
	if meta.Duration != 212 || meta.Ext != "webm" || meta.Filesize != 3456789 {
		t.Errorf("got %+v", meta)
	}

	if _, err := ParseMetadata([]byte(`{"title": "no id"}`)); err == nil {
		t.Error("expected error without id")
	}
	if _, err := ParseMetadata([]byte(`{broken`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestMissingTool(t *testing.T) {
	y := New(Config{YtDlpPath: filepath.Join(t.TempDir(), "no-ytdlp")}, nil)

	if err := y.CheckAvailability(); !errors.Is(err, ErrToolNotInstalled) {
		t.Errorf("CheckAvailability err = %v", err)
	}
	if _, err := y.Download(context.Background(), "https://youtu.be/x", t.TempDir(), "x"); !errors.Is(err, ErrToolNotInstalled) {
		t.Errorf("Download err = %v", err)
	}
	if _, err := y.Probe(context.Background(), "https://youtu.be/x"); !errors.Is(err, ErrToolNotInstalled) {
		t.Errorf("Probe err = %v", err)
	}
}

func TestDownloadedFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"abc.webm.part", "abc.webm", "other.m4a"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := downloadedFile(dir, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "abc.webm" {
		t.Errorf("got %s", got)
	}

	if _, err := downloadedFile(dir, "missing"); err == nil {
		t.Error("expected error for missing download")
	}
}
