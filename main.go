package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/lmittmann/tint"

	"github.com/voxkey/voxkey/audiocapture"
	"github.com/voxkey/voxkey/clipboard"
	"github.com/voxkey/voxkey/config"
	"github.com/voxkey/voxkey/history"
	"github.com/voxkey/voxkey/internal/app"
	"github.com/voxkey/voxkey/singleinstance"
	"github.com/voxkey/voxkey/soundfx"
	"github.com/voxkey/voxkey/stt"
	"github.com/voxkey/voxkey/tray"
	"github.com/voxkey/voxkey/windows"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		reset       = flag.Bool("reset", false, "clear a stale instance lock and exit")
		listDevices = flag.Bool("list-devices", false, "list audio input devices and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxkey %s (%s, %s)\n", version, commit, date)
		return
	}
	if *reset {
		if err := singleinstance.Reset(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("instance lock cleared")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *configPath == "" {
		if _, err := config.CreateDefault(); err != nil {
			slog.Warn("could not create default config", "err", err)
		}
	}

	lock, err := singleinstance.Acquire("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("starting voxkey", "version", version, "commit", commit)
	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	recorder, err := audiocapture.NewRecorder(audiocapture.Config{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		DeviceID:   cfg.Audio.DeviceID,
		Opener:     audiocapture.NewPortAudioOpener(),
	})
	if err != nil {
		return fmt.Errorf("init capture: %w", err)
	}

	transcriber, err := stt.New(stt.Config{
		Backend:   cfg.Transcription.Backend,
		APIKey:    cfg.Transcription.APIKey,
		BaseURL:   cfg.Transcription.BaseURL,
		Model:     cfg.Transcription.Model,
		ModelPath: cfg.Transcription.ModelPath,
		BinPath:   cfg.Transcription.BinPath,
	})
	if err != nil {
		return fmt.Errorf("init transcriber: %w", err)
	}

	winMgr, err := windows.NewManager(selectStrategies(cfg.WindowManager.Strategy)...)
	if err != nil {
		// Dictation still works via the clipboard fallback.
		slog.Warn("no window strategy available, using clipboard only", "err", err)
	}

	var store *history.Store
	if cfg.History.Enabled {
		dir := filepath.Join(xdg.DataHome, "voxkey", "history")
		store, err = history.Open(history.Options{Dir: dir, MaxEntries: cfg.History.MaxEntries})
		if err != nil {
			slog.Warn("history disabled", "err", err)
		}
	}

	var service *app.Service
	trayUI := tray.New(tray.Callbacks{
		OnToggle: func() { service.Toggle() },
		RecentEntries: func() []tray.HistoryEntry {
			var entries []tray.HistoryEntry
			for _, e := range service.Recent(5) {
				entries = append(entries, tray.HistoryEntry{Text: e.Text})
			}
			return entries
		},
		OnHistorySelect: func(text string) {
			if err := clipboard.SetText(text); err != nil {
				slog.Warn("copy history entry", "err", err)
			}
		},
	})

	opts := app.Options{
		Config:      cfg,
		Recorder:    recorder,
		Transcriber: transcriber,
		History:     store,
		Sounds:      soundfx.NewPlayer(cfg.Sounds.Enabled),
		Status:      trayUI,
	}
	if winMgr != nil {
		opts.Windows = winMgr
	}
	service = app.New(opts)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		trayUI.Quit()
	}()

	// systray owns the main goroutine; everything else starts from onReady.
	trayUI.Run(func() {
		if err := service.StartHotkeys(); err != nil {
			slog.Error("start hotkeys", "err", err)
			trayUI.Quit()
		}
	})

	service.Shutdown()
	return nil
}

func selectStrategies(forced string) []windows.Strategy {
	all := windows.DefaultStrategies()
	if forced == "" {
		return all
	}
	for _, s := range all {
		if s.Name() == forced {
			return []windows.Strategy{s}
		}
	}
	slog.Warn("unknown window strategy, using auto-detect", "strategy", forced)
	return all
}

func printDevices() error {
	opener := audiocapture.NewPortAudioOpener()
	devices, err := opener.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %3d  %-40s %d ch  %.0f Hz\n", mark, d.ID, d.Name, d.Channels, d.SampleRate)
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})))
}
