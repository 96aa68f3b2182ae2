package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/dustin/go-humanize"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// ErrFFmpegNotFound is returned when the ffmpeg or ffprobe binary cannot be executed
var ErrFFmpegNotFound = errors.New("cannot find ffmpeg")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float32      `json:"-"` // Raw PCM data, interleaved when Channels > 1
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels"`
	OutputFormat     string        `json:"output_format"` // raw container passed to -f
	OutputCodec      string        `json:"output_codec"`  // codec passed to -c:a
	MaxDuration      time.Duration `json:"max_duration"`  // 0 decodes everything
	FFmpegPath       string        `json:"ffmpeg_path"`   // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"`  // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`       // Per-command timeout, 0 defers to the caller's context
}

// DefaultDecoderConfig returns the mono 44.1 kHz float32 configuration the
// analysis expects
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		TargetChannels:   1,
		OutputFormat:     "f32le",
		OutputCodec:      "pcm_f32le",
		MaxDuration:      0,
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          0,
	}
}

// Decoder handles audio decoding using FFmpeg
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// WithLogger returns a copy of the decoder logging through logger
func (d *Decoder) WithLogger(logger logging.Logger) *Decoder {
	clone := *d
	clone.logger = logger.WithFields(logging.Fields{"component": "audio_decoder"})
	return &clone
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeToFile converts input into a raw PCM file at output
func (d *Decoder) DecodeToFile(ctx context.Context, input, output string) error {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeToFile",
		"input":    input,
		"output":   output,
	})

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildFFmpegArgs(input, output)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Running ffmpeg command", logging.Fields{
		"command": fmt.Sprintf("%s %s", d.config.FFmpegPath, strings.Join(args, " ")),
	})

	start := time.Now()
	if err := cmd.Run(); err != nil {
		err = d.execError("ffmpeg decode", d.config.FFmpegPath, err, stderr.String())
		logger.Error(err, "FFmpeg decode failed")
		return err
	}

	fields := logging.Fields{"decode_time": time.Since(start).Seconds()}
	if info, err := os.Stat(output); err == nil {
		fields["output_size"] = humanize.Bytes(uint64(info.Size()))
	}
	logger.Debug("FFmpeg decode completed", fields)

	return nil
}

// DecodeFile decodes input straight into memory
func (d *Decoder) DecodeFile(ctx context.Context, input string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"input":    input,
	})

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildFFmpegArgs(input, "pipe:1")
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		err = d.execError("ffmpeg decode", d.config.FFmpegPath, err, stderr.String())
		logger.Error(err, "FFmpeg decode failed")
		return nil, err
	}

	samples := BytesToFloat32(stdout.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", input)
	}

	samplesPerChannel := len(samples) / d.config.TargetChannels
	duration := time.Duration(samplesPerChannel) * time.Second / time.Duration(d.config.TargetSampleRate)

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_size": humanize.Bytes(uint64(stdout.Len())),
		"samples":     len(samples),
		"duration":    duration.Seconds(),
		"decode_time": time.Since(start).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   d.config.TargetChannels,
		Duration:   duration,
		Timestamp:  time.Now(),
	}, nil
}

// Probe uses ffprobe to read the first audio stream of a file
func (d *Decoder) Probe(ctx context.Context, input string) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		input,
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, d.execError("ffprobe", d.config.FFprobePath, err, stderr.String())
	}

	metadata, err := ParseFFprobeOutput(output)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("FFprobe completed", logging.Fields{
		"function":    "Probe",
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
		"duration":    metadata.Duration,
	})
	return metadata, nil
}

// ParseFFprobeOutput reads the first stream of `ffprobe -print_format json -show_streams`
func ParseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var (
		metadata *AudioMetadata
		parseErr error
	)

	_, err := jsonparser.ArrayEach(jsonData, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if metadata != nil || parseErr != nil {
			return
		}

		codecType, _ := jsonparser.GetString(value, "codec_type")
		if codecType != "audio" {
			parseErr = fmt.Errorf("stream is not audio type: %s", codecType)
			return
		}

		channels, err := jsonparser.GetInt(value, "channels")
		if err != nil || channels <= 0 || channels > 8 {
			parseErr = fmt.Errorf("invalid channel count: %d", channels)
			return
		}

		metadata = &AudioMetadata{Channels: int(channels)}
		metadata.Codec, _ = jsonparser.GetString(value, "codec_name")
		metadata.Format, _ = jsonparser.GetString(value, "codec_long_name")

		// ffprobe reports numbers as strings
		metadata.SampleRate = 44100
		if s, err := jsonparser.GetString(value, "sample_rate"); err == nil {
			if v, err := strconv.Atoi(s); err == nil {
				metadata.SampleRate = v
			}
		}
		if s, err := jsonparser.GetString(value, "duration"); err == nil {
			metadata.Duration, _ = strconv.ParseFloat(s, 64)
		}
		if s, err := jsonparser.GetString(value, "bit_rate"); err == nil {
			metadata.Bitrate, _ = strconv.Atoi(s)
		}
	}, "streams")
	if err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if metadata == nil {
		return nil, fmt.Errorf("no audio streams found")
	}
	return metadata, nil
}

// LoadPCM reads a raw little-endian float32 file
func LoadPCM(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio file: %w", err)
	}
	return BytesToFloat32(data), nil
}

// BytesToFloat32 converts little-endian float32 bytes to samples. A trailing
// partial sample is dropped.
func BytesToFloat32(data []byte) []float32 {
	sampleCount := len(data) / 4
	samples := make([]float32, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}

	return samples
}

// buildFFmpegArgs builds the ffmpeg arguments for a raw PCM output
func (d *Decoder) buildFFmpegArgs(input, output string) []string {
	args := []string{
		"-v", "error", // Suppress verbose output
		"-y", // Overwrite output
		"-i", input,
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	args = append(args,
		"-vn", // No video
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"-c:a", d.config.OutputCodec,
		"-f", d.config.OutputFormat,
		output,
	)

	return args
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// execError turns a failed command into an error, with an install hint when
// the binary itself is missing
func (d *Decoder) execError(op, binary string, err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w at %q: install ffmpeg (https://ffmpeg.org/download.html) or set FFMPEG_PATH and FFPROBE_PATH", ErrFFmpegNotFound, binary)
	}
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		return fmt.Errorf("%s failed: %w, stderr: %s", op, err, stderr)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// ValidateConfig validates the decoder configuration and tool availability
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}

	if d.config.TargetChannels <= 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", d.config.TargetChannels)
	}

	if d.config.OutputFormat == "" || d.config.OutputCodec == "" {
		return fmt.Errorf("output format and codec are required")
	}

	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}

	return d.CheckAvailability()
}

// CheckAvailability reports ErrFFmpegNotFound when either binary is missing
func (d *Decoder) CheckAvailability() error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return d.execError("lookup", bin, err, "")
		}
	}
	return nil
}
