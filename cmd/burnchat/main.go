// Burnchat is a terminal chat composer with a pinyin keyboard, a
// handwriting pad and messages that burn six seconds after sending.
//
// Usage:
//
//	burnchat [--config burnchat.yaml] [--log-level debug] [--endpoint URL]
//	burnchat config init [path]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/burnchat/internal/audio"
	"github.com/hammamikhairi/burnchat/internal/config"
	"github.com/hammamikhairi/burnchat/internal/dictionary"
	"github.com/hammamikhairi/burnchat/internal/display"
	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/engine"
	"github.com/hammamikhairi/burnchat/internal/handwriting"
	"github.com/hammamikhairi/burnchat/internal/ink"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/storage"
	"github.com/hammamikhairi/burnchat/internal/telemetry"
	"github.com/hammamikhairi/burnchat/internal/timer"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "burnchat",
		Short:         "Compose messages that burn six seconds after sending",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, cmd)
		},
	}

	defaults := config.Default()
	f := root.Flags()
	f.StringVarP(&configPath, "config", "c", "", "config file (default ./burnchat.yaml)")
	f.String("log-level", defaults.LogLevel, "off, info or debug")
	f.String("log-file", defaults.LogFile, `log file ("stderr" logs to the console)`)
	f.String("sender", defaults.SenderID, "sender identity: user, blade or head")
	f.String("dictionary", "", "pinyin dictionary YAML (default built-in)")
	f.String("endpoint", "", "chat-completions endpoint for handwriting recognition")
	f.String("model", "", "model name for OpenAI-style endpoints")
	f.Bool("telemetry", defaults.Telemetry.Enabled, "export metrics and traces to files")
	f.Bool("audio", defaults.Audio.Enabled, "play voice messages")

	root.AddCommand(newConfigCmd())
	return root
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			path = config.ResolvePath(path)
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cfgCmd
}

func run(parent context.Context, configPath string, cmd *cobra.Command) error {
	// Config loading logs before the real sink exists.
	boot := logger.New(logger.LevelOff, nil)
	cfg, usedPath, err := config.Load(boot, configPath, cmd.Flags())
	if err != nil {
		return err
	}

	// Direct logs to a file by default so the terminal UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating log dir: %w", err)
			}
		}
		rotated := telemetry.RotatedFile(cfg.LogFile)
		defer rotated.Close()
		logOut = rotated
	}
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logger.ParseLevel(cfg.LogLevel), logOut)
	log.Info("starting burnchat (config=%s, sender=%s)", usedPath, cfg.SenderID)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Dir, log.With("telemetry"))
		if err != nil {
			log.Error("telemetry disabled: %v", err)
		} else {
			defer shutdown()
		}
	}

	dict := dictionary.Builtin()
	if cfg.DictionaryPath != "" {
		if dict, err = dictionary.LoadFile(cfg.DictionaryPath); err != nil {
			return err
		}
		log.Info("loaded %d pinyin keys from %s", dict.Len(), cfg.DictionaryPath)
	}

	recognizer, err := handwriting.FromConfig(cfg.Recognizer, log.With("handwriting"),
		handwriting.WithMaxCandidates(cfg.MaxCandidates),
	)
	if errors.Is(err, domain.ErrRecognizerDisabled) {
		log.Info("handwriting recognition disabled: set recognizer.endpoint or BURNCHAT_RECOGNIZER_ENDPOINT")
	}

	store := storage.NewMemoryStore(log.With("store"))
	ctrl := engine.New(
		dictionary.NewResolver(dict), store, recognizer, log.With("engine"),
		engine.WithSender(cfg.Sender()),
		engine.WithSettleDelay(cfg.SettleDelay),
		engine.WithCanvas(ink.NewCanvas(cfg.CanvasWidth, cfg.CanvasHeight)),
	)

	uiOpts := []display.Option{display.WithCanvasSize(cfg.CanvasWidth, cfg.CanvasHeight)}
	if cfg.Audio.Enabled {
		var sink audio.Sink
		player, err := audio.NewPlayer(log.With("audio"))
		if err != nil {
			log.Error("audio player init failed, playback muted: %v", err)
			sink = audio.NewMute(log.With("audio"))
		} else {
			sink = player
			defer player.Stop()
		}
		uiOpts = append(uiOpts, display.WithAudio(audio.NewClips(log.With("clips")), sink))
	}

	var loop *engine.Loop
	ui := display.NewUI(func(c engine.Command) bool { return loop.Submit(c) }, log.With("display"), uiOpts...)
	loop = engine.NewLoop(ctrl, ui, log.With("loop"))

	sweeper := timer.NewSweeper(loop, log.With("sweeper"), timer.WithTickInterval(cfg.SweepInterval))

	fmt.Println(display.RenderBanner("Everything you send burns after 6 seconds. F1 for keys."))

	// Start the engine once Bubble Tea owns the terminal.
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		select {
		case <-ui.Ready():
		case <-ui.QuitChan():
			return
		}
		sweeper.Start(ctx)
		loop.Run(ctx)
		sweeper.Stop()
		ui.Quit()
	}()

	go func() {
		<-ctx.Done()
		ui.Quit()
	}()

	runErr := ui.Run()
	cancel()
	<-engineDone

	log.Info("burnchat stopped (%d messages still live)", store.Len())
	if runErr != nil {
		return fmt.Errorf("display: %w", runErr)
	}
	return nil
}
