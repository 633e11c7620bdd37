package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"markestedt/clipshare/audio"
	"markestedt/clipshare/config"
	"markestedt/clipshare/notify"
	"markestedt/clipshare/platform"
	"markestedt/clipshare/protocol"
	"markestedt/clipshare/serialport"
	"markestedt/clipshare/storage"
	"markestedt/clipshare/systray"
	"markestedt/clipshare/web"
)

const (
	appName          = "ClipShare"
	historyRetention = 90 * 24 * time.Hour
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	tray       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "clipshare",
		Short:         "Share clipboard text over a serial link",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd, opts)
			if err != nil {
				slog.Error("ClipShare failed", "error", err)
			}
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.toml (default: user config dir)")
	flags.String("mode", "", "sender, receiver or both")
	flags.String("send-port", "", "serial port the sender writes to")
	flags.String("recv-port", "", "serial port the receiver reads from")
	flags.Int("baud", 0, "baud rate for both ports")
	flags.Int("delay-ms", 0, "pause between hotkey and clipboard capture")
	flags.String("hotkey", "", "global hotkey, e.g. Ctrl+Shift+C")
	flags.Int("preview-chars", 0, "characters shown in notification previews")
	flags.Bool("notifications", true, "show desktop notifications")
	cmd.Flags().BoolVar(&opts.tray, "tray", runtime.GOOS == "windows", "run with a system tray icon")

	cmd.AddCommand(newPortsCmd(), newSendCmd(opts))
	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send TEXT",
		Short: "Send TEXT as one frame on the send port and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			cfg.Normalize()

			n, err := sendOnce(serialport.System{}, cfg.SendPort, cfg.Baud, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", n, cfg.SendPort)
			return nil
		},
	}
}

// sendOnce writes text as a single frame and closes the port.
func sendOnce(opener serialport.Opener, port string, baud int, text string) (int, error) {
	if text == "" {
		return 0, errors.New("nothing to send")
	}

	p, err := opener.Open(port, baud)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	frame := protocol.EncodeText(text)
	n, err := p.Write(frame)
	if err != nil {
		return n, fmt.Errorf("failed to write to %s: %w", port, err)
	}
	if n != len(frame) {
		return n, fmt.Errorf("failed to write to %s: %w", port, io.ErrShortWrite)
	}
	return n, nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		return config.Load()
	}
	cfg, err := config.LoadFrom(path)
	return cfg, path, err
}

// overridesFromFlags collects the flags the user actually set, so unset
// flags never clobber file values.
func overridesFromFlags(flags *pflag.FlagSet) (config.Overrides, error) {
	var ov config.Overrides
	var err error

	str := func(name string, dst **string) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v string
		if v, err = flags.GetString(name); err == nil {
			*dst = &v
		}
	}
	num := func(name string, dst **int) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v int
		if v, err = flags.GetInt(name); err == nil {
			*dst = &v
		}
	}

	str("mode", &ov.Mode)
	str("send-port", &ov.SendPort)
	str("recv-port", &ov.RecvPort)
	str("hotkey", &ov.Hotkey)
	num("baud", &ov.Baud)
	num("delay-ms", &ov.DelayMs)
	num("preview-chars", &ov.PreviewChars)

	if err == nil && flags.Changed("notifications") {
		var v bool
		if v, err = flags.GetBool("notifications"); err == nil {
			ov.Notifications = &v
		}
	}
	if err != nil {
		return config.Overrides{}, fmt.Errorf("failed to read flags: %w", err)
	}
	return ov, nil
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	ov, err := overridesFromFlags(flags)
	if err != nil {
		return err
	}
	ov.Apply(cfg)
	return nil
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	cfgPath := opts.configPath
	if cfgPath == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		cfgPath = p
	}

	logDir := ""
	if opts.tray {
		logDir = filepath.Dir(cfgPath)
	}
	logger, logCloser, err := setupLogging(os.Stdout, logDir, time.Now())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Configuration loaded", "path", cfgPath)

	ov, err := overridesFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	ov.Apply(cfg)
	for _, w := range cfg.Normalize() {
		logger.Warn("Configuration problem", "detail", w)
	}
	if !ov.Empty() {
		if err := config.Save(cfgPath, cfg); err != nil {
			logger.Warn("Failed to save command-line settings", "error", err)
		}
	}

	var cue notify.Cue
	if cfg.Sound {
		chime, err := audio.NewChime()
		if err != nil {
			logger.Warn("Sound cue unavailable", "error", err)
		} else {
			defer chime.Close()
			cue = chime
		}
	}

	deps := AppDeps{
		Opener:    serialport.System{},
		Clipboard: platform.NewClipboard(),
		Hotkeys:   platform.NewHotkey(),
		Notifier:  notify.NewDesktop(appName, cue, logger),
		Logger:    logger,
	}

	var history web.History
	if cfg.History.Enabled {
		db, err := storage.Open(filepath.Dir(cfgPath))
		if err != nil {
			logger.Warn("Transfer history unavailable", "error", err)
		} else {
			defer db.Close()
			if n, err := db.PruneBefore(time.Now().Add(-historyRetention)); err != nil {
				logger.Warn("Failed to prune history", "error", err)
			} else if n > 0 {
				logger.Info("Pruned old transfers", "count", n)
			}
			deps.History = db
			history = db
		}
	}

	app := NewApp(cfg, cfgPath, deps)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Web.Enabled {
		server := web.NewServer(web.Options{
			Port:        cfg.Web.Port,
			History:     history,
			Status:      app.Status,
			Config:      app.Config,
			ApplyConfig: app.ApplyConfig,
			Logger:      logger,
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Web server stopped", "error", err)
			}
		}()
		app.SetDashboard(server, server.URL())
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		}()
	}

	watcher := config.NewWatcher(cfgPath, func() {
		if err := app.ReloadIfChanged(); err != nil {
			logger.Error("Reload failed", "error", err)
		}
	}, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("Config watcher stopped", "error", err)
		}
	}()

	if err := app.ApplyMode(); err != nil {
		logger.Warn("Some sessions did not start", "error", err)
	}
	slog.Info("ClipShare started", "status", app.StatusLine())

	if opts.tray {
		runTray(ctx, app)
	} else {
		<-ctx.Done()
	}

	app.Shutdown()
	slog.Info("ClipShare stopped")
	return nil
}

// runTray blocks until the user exits from the menu or ctx is cancelled.
func runTray(ctx context.Context, app *App) {
	mgr := systray.NewSystrayManager(app, systray.Icon())
	app.OnChange(mgr.Refresh)

	go func() {
		select {
		case <-ctx.Done():
			mgr.Stop()
		case <-mgr.WaitForQuit():
		}
	}()

	mgr.Run()
}
