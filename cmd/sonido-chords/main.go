package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/acquire"
	"github.com/RyanBlaney/sonido-chords/analysis"
	"github.com/RyanBlaney/sonido-chords/cache"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/pipeline"
	"github.com/RyanBlaney/sonido-chords/server"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

var version = "0.1.0"

var (
	logLevel  string
	threshold float64
	port      string
	pretty    bool
	olderThan time.Duration
	inMemory  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sonido-chords",
	Short: "Extract chords, tempo and key from audio",
	Long: `sonido-chords downloads audio, decodes it to mono 44.1 kHz PCM and
estimates beats, chords and key.

Pipeline: YouTube URL → yt-dlp → ffmpeg → chroma + beats → chords → key`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve POST /api/readChords with a JSON body {"url": "..."}.

Example:
  sonido-chords serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze a YouTube video and print the result",
	Example: `  sonido-chords analyze "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
  sonido-chords analyze https://youtu.be/dQw4w9WgXcQ --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var fileCmd = &cobra.Command{
	Use:     "file <path>",
	Short:   "Analyze a local audio file",
	Example: `  sonido-chords file song.mp3 --threshold 0.8`,
	Args:    cobra.ExactArgs(1),
	RunE:    runFile,
}

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Show what yt-dlp knows about a video without downloading it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached analyses older than a given age",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", analysis.DefaultThreshold, "Minimum chord strength kept in the output")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "Decode through a pipe instead of a PCM file; overrides CHORDS_DECODE_IN_MEMORY")

	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on; overrides PORT")
	analyzeCmd.Flags().BoolVar(&pretty, "pretty", false, "Print a colored summary instead of JSON")
	fileCmd.Flags().BoolVar(&pretty, "pretty", false, "Print a colored summary instead of JSON")
	cachePruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Maximum age of kept entries")

	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(serveCmd, analyzeCmd, fileCmd, probeCmd, cacheCmd)
}

// app holds the wired collaborators for one command invocation
type app struct {
	cfg          config.Config
	logger       logging.Logger
	decoder      *transcode.Decoder
	acquirer     *acquire.YtDlp
	orchestrator *pipeline.Orchestrator
	store        *cache.Store
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	if cmd.Flags().Changed("threshold") {
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("threshold must be in [0,1], got %v", threshold)
		}
		cfg.Threshold = threshold
	}
	if cmd.Flags().Changed("in-memory") {
		cfg.InMemoryDecode = inMemory
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(cfg.LogLevel)
	logging.SetGlobalLogger(logger)

	eng, err := engine.Default()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	options := analysis.DefaultOptions()
	options.Threshold = cfg.Threshold
	analyzer := analysis.NewAnalyzer(eng, options, logger)

	decCfg := transcode.DefaultDecoderConfig()
	decCfg.FFmpegPath = cfg.FFmpegPath
	decCfg.FFprobePath = cfg.FFprobePath
	decoder := transcode.NewDecoder(decCfg).WithLogger(logger)

	acqCfg := acquire.DefaultConfig()
	acqCfg.YtDlpPath = cfg.YtDlpPath
	acquirer := acquire.New(acqCfg, logger)

	orchestrator := pipeline.New(acquirer, decoder, analyzer, pipeline.Options{
		Budget:   cfg.Timeout,
		TempDir:  cfg.TempDir,
		InMemory: cfg.InMemoryDecode,
	}, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		decoder:  decoder,
		acquirer: acquirer,
	}

	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath, cfg.CacheSize, logger)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.store = store
		orchestrator = orchestrator.WithCache(store)
	}
	a.orchestrator = orchestrator

	return a, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close cache", logging.Fields{"error": err.Error()})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	// the service can start without the tools, requests will fail with an install hint
	if err := a.decoder.CheckAvailability(); err != nil {
		a.logger.Warn("ffmpeg unavailable", logging.Fields{"error": err.Error()})
	}
	if err := a.acquirer.CheckAvailability(); err != nil {
		a.logger.Warn("yt-dlp unavailable", logging.Fields{"error": err.Error()})
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Port = a.cfg.Port
	if port != "" {
		srvCfg.Port = port
	}
	srvCfg.WriteTimeout = a.cfg.Timeout + 30*time.Second

	ctx, cancel := signalContext()
	defer cancel()

	a.logger.Info("Configuration loaded", logging.Fields{
		"serverless": a.cfg.Serverless,
		"timeout":    a.cfg.Timeout.String(),
		"temp_dir":   a.cfg.TempDir,
		"cache":      a.cfg.CachePath != "",
		"threshold":  a.cfg.Threshold,
		"in_memory":  a.cfg.InMemoryDecode,
	})

	return server.New(srvCfg, a.orchestrator, a.logger).Run(ctx)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.orchestrator.Process(ctx, args[0])
	if err != nil {
		return err
	}
	return printResult(res)
}

func runFile(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.orchestrator.ProcessFile(ctx, args[0])
	if err != nil {
		return err
	}
	return printResult(res)
}

func runProbe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	meta, err := a.acquirer.Probe(ctx, args[0])
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("%s\n", meta.Title)
	fmt.Printf("  id:       %s\n", meta.ID)
	fmt.Printf("  uploader: %s\n", meta.Uploader)
	fmt.Printf("  duration: %s\n", (time.Duration(meta.Duration) * time.Second).String())
	if meta.Filesize > 0 {
		fmt.Printf("  size:     %s (%s)\n", humanize.Bytes(uint64(meta.Filesize)), meta.Ext)
	}
	if budget := a.cfg.Timeout; meta.Duration > budget.Seconds() {
		color.Yellow("  this track is longer than the %s processing budget", budget)
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.store == nil || !a.store.Persistent() {
		return fmt.Errorf("no persistent cache configured, set CHORDS_CACHE_PATH")
	}

	n, err := a.store.Prune(cmd.Context(), olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %s cached %s older than %s\n", humanize.Comma(n), plural(n, "analysis", "analyses"), olderThan)
	return nil
}

func printResult(res *analysis.Result) error {
	if !pretty {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Println("Chords")
	for i, chord := range res.Chords {
		strength := 0.0
		if i < len(res.Strengths) {
			strength = res.Strengths[i]
		}
		fmt.Printf("  %-4s %.2f\n", chord, strength)
	}
	if len(res.Chords) == 0 {
		color.Yellow("  no chord reached the strength threshold")
	}

	header.Println("Rhythm")
	fmt.Printf("  %.1f BPM from %s beats (%d beats)\n", res.BPM, res.BeatSource, len(res.Beats))

	header.Println("Key")
	if res.Key != "" {
		fmt.Printf("  %s %s (%.2f)\n", res.Key, res.Scale, res.KeyStrength)
	} else {
		fmt.Println("  unknown")
	}

	fmt.Printf("\n%s of audio, %d frames\n", formatSeconds(res.Duration), res.Frames)
	return nil
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Second).String()
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
