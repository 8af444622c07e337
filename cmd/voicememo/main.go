package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/config"
	"github.com/snarg/voicememo/internal/export"
	"github.com/snarg/voicememo/internal/kv"
	"github.com/snarg/voicememo/internal/metrics"
	"github.com/snarg/voicememo/internal/mqttclient"
	"github.com/snarg/voicememo/internal/storage"
	"github.com/snarg/voicememo/internal/transcribe"
	"gopkg.in/natefinch/lumberjack.v2"
)

var version = "dev"

const usage = `Usage: voicememo [flags] [command]

Commands:
  tui          record and browse memos in the terminal (default)
  serve        run the HTTP API and the watch-folder importer
  export <id>  write a recording's transcript to the export directory
  clear        delete every recording and setting

Flags:
`

func main() {
	startTime := time.Now()

	var ov config.Overrides
	flag.StringVar(&ov.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&ov.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flag.StringVar(&ov.DataDir, "data-dir", "", "data directory (default ~/.voicememo)")
	flag.StringVar(&ov.StoreBackend, "store", "", "library backend: file, sqlite or postgres")
	flag.StringVar(&ov.DatabaseURL, "database-url", "", "postgres connection string")
	flag.StringVar(&ov.HTTPAddr, "http-addr", "", "HTTP listen address for serve")
	flag.StringVar(&ov.ImportDir, "import-dir", "", "watch folder for serve")
	flag.BoolVar(&ov.Mock, "mock", false, "use the mock transcription service")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("voicememo", version)
		return
	}

	cmd, args := "tui", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "tui", "serve", "export", "clear":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(ov)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// The TUI owns the terminal, so it logs to the file only.
	log, closeLog := newLogger(cfg, cmd != "tui")
	defer closeLog()
	log.Info().Str("version", version).Str("command", cmd).Msg("voicememo starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newCore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	switch cmd {
	case "tui":
		err = runTUI(ctx, rt)
	case "serve":
		err = runServe(ctx, rt, startTime)
	case "export":
		err = runExport(ctx, rt, args)
	case "clear":
		err = rt.library.ClearAllData(ctx)
		if err == nil {
			fmt.Println("all recordings and settings deleted")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		rt.Close()
		closeLog()
		if cmd == "tui" {
			fmt.Fprintln(os.Stderr, "voicememo:", err)
		}
		os.Exit(1)
	}
	log.Info().Msg("voicememo stopped")
}

// newLogger writes JSON lines to a rotating log file, and to stdout as well
// when console is set.
func newLogger(cfg *config.Config, console bool) (zerolog.Logger, func()) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stdout)
	}
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err == nil {
			lj := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28,
			}
			writers = append(writers, lj)
			closeFn = func() { _ = lj.Close() }
		}
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level), closeFn
}

// core holds the collaborators shared by every command.
type core struct {
	cfg         *config.Config
	log         zerolog.Logger
	kv          kv.Store
	library     *storage.Service
	transcriber transcribe.Service
	audio       audio.Store
	services    []audio.BackgroundService
	mqtt        *mqttclient.Client
	closeOnce   sync.Once
}

func newCore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*core, error) {
	rt := &core{cfg: cfg, log: log}

	for _, dir := range []string{cfg.DataDir, cfg.AudioDir, cfg.CaptureDir, cfg.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	store, err := kv.Open(ctx, kv.Options{
		Backend:     cfg.StoreBackend,
		Dir:         cfg.KVDir(),
		SQLitePath:  cfg.SQLitePath(),
		DatabaseURL: cfg.DatabaseURL,
		Log:         log.With().Str("component", "kv").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	rt.kv = store
	log.Info().Str("backend", store.Type()).Msg("library store opened")

	if cfg.MQTT.Enabled() {
		client, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Log:         log,
		})
		if err != nil {
			// Change events are optional; keep running without them.
			log.Warn().Err(err).Str("broker", cfg.MQTT.BrokerURL).Msg("mqtt connect failed")
		} else {
			rt.mqtt = client
		}
	}

	rt.library = storage.New(storage.Options{
		KV:       store,
		Notifier: storage.NotifierFunc(rt.notify),
		Log:      log,
	})

	audioStore, services, err := audio.NewStore(cfg.S3, cfg.AudioDir, log.With().Str("component", "audio").Logger())
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.audio = audioStore
	rt.services = services
	for _, svc := range services {
		svc.Start()
	}

	rt.transcriber = transcribe.Instrument(transcribe.New(transcribe.Options{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		TranscribeModel: cfg.TranscribeModel,
		EnhanceModel:    cfg.EnhanceModel,
		Language:        cfg.TranscribeLanguage,
		Timeout:         cfg.TranscribeTimeout,
		AudioDir:        cfg.AudioDir,
		Store:           audioStore,
		Preprocess:      transcribe.CheckSox(),
		UseMock:         cfg.UseMock,
		Log:             log.With().Str("component", "transcribe").Logger(),
	}))
	return rt, nil
}

func (rt *core) notify(ch storage.Change) {
	metrics.RecordingChangesTotal.WithLabelValues(string(ch.Action)).Inc()
	if rt.mqtt != nil {
		rt.mqtt.Notify(ch)
	}
}

// uploadQueue reports pending backup uploads, or 0 without an S3 tier.
func (rt *core) uploadQueue() int {
	for _, svc := range rt.services {
		if u, ok := svc.(*audio.AsyncUploader); ok {
			return u.Stats().Pending
		}
	}
	return 0
}

// Close stops background services and releases the store. Safe to call
// more than once.
func (rt *core) Close() {
	rt.closeOnce.Do(func() {
		for i := len(rt.services) - 1; i >= 0; i-- {
			rt.services[i].Stop()
		}
		if rt.mqtt != nil {
			rt.mqtt.Close()
		}
		if rt.kv != nil {
			if err := rt.kv.Close(); err != nil {
				rt.log.Warn().Err(err).Msg("close library store")
			}
		}
	})
}

func runExport(ctx context.Context, rt *core, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: voicememo export <id>")
	}
	rec, ok := rt.library.GetRecording(ctx, args[0])
	if !ok {
		return fmt.Errorf("recording %q not found", args[0])
	}
	path, err := export.WriteTranscript(rt.cfg.ExportDir, rec)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
