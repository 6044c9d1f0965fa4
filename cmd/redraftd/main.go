// redraftd - background daemon for the redraft desktop rewriting tool.
//
// The daemon owns the global shortcut, the clipboard pipeline, the stored
// credential, and the IPC endpoint that redraftctl and the tray UI talk to.
//
//	redraftd                 Run the daemon in the foreground
//	redraftd -config <path>  Run with an explicit config file
//	redraftd -version        Print the version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"redraftd/internal/capture"
	"redraftd/internal/config"
	"redraftd/internal/deeplink"
	"redraftd/internal/hotkey"
	"redraftd/internal/input"
	"redraftd/internal/ipc"
	"redraftd/internal/logging"
	"redraftd/internal/notify"
	"redraftd/internal/orchestrator"
	"redraftd/internal/rewrite"
	"redraftd/internal/store"
	"redraftd/internal/vault"
	"redraftd/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Name, version.Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "redraftd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logLevel = logging.LevelInfo
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Format = logging.ParseFormat(cfg.Logging.Format)
	logCfg.Output = cfg.Logging.Output
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	log.Info("starting", "version", version.Version, "platform", runtime.GOOS)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	// State store and vault.
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sealer, err := vault.SelectSealer(cfg.Vault.Sealer, cfg.Vault.KeyPath)
	if err != nil {
		return fmt.Errorf("select sealer: %w", err)
	}
	v := vault.New(st, sealer, log.WithComponent("vault"))

	// Event plumbing.
	mailbox := notify.NewMailbox(log.WithComponent("notify"))
	notifier := notify.NewNotifier(log.WithComponent("notify"))
	notifyEvents, cancelNotify := mailbox.Subscribe()
	defer cancelNotify()
	go notify.Forward(notifyEvents, notifier, log)

	// Input pipeline.
	driver, err := input.NewDriver()
	if err != nil {
		return fmt.Errorf("input driver: %w", err)
	}
	log.Info("input driver ready", "backend", driver.Name())

	capturer := capture.New(driver, log.WithComponent("capture"),
		capture.WithPollInterval(cfg.PollInterval()),
		capture.WithMaxAttempts(cfg.Capture.MaxAttempts),
		capture.WithSettleDelay(cfg.SettleDelay()))

	client := rewrite.NewClient(cfg.API.BaseURL, cfg.APITimeout(),
		log.WithComponent("rewrite"))

	auth := deeplink.New(cfg.API.BaseURL, v, mailbox, log.WithComponent("deeplink"))

	orch := orchestrator.New(capturer, v, client, st, mailbox,
		log.WithComponent("orchestrator"))

	// Global shortcut.
	binding, err := hotkey.ParseBinding(cfg.Shortcut.Binding)
	if err != nil {
		return fmt.Errorf("shortcut binding: %w", err)
	}
	hk := hotkey.NewManager(binding, log.WithComponent("hotkey"))
	hk.SetEnabled(cfg.Shortcut.Enabled)
	if err := hk.Start(ctx); err != nil {
		// A headless session or missing portal should not kill the
		// daemon; sign-in and IPC still work.
		log.Error("shortcut registration failed", "error", err)
		mailbox.Publish(notify.Event{
			Type:    notify.TypeError,
			Title:   "Shortcut unavailable",
			Message: "The global shortcut could not be registered.",
		})
	}
	go orch.Run(ctx, hk.Presses())

	promptPermissionsOnce(st, mailbox, log)

	// IPC endpoint.
	daemon := &daemonState{
		startedAt: time.Now(),
		cfg:       cfg,
		store:     st,
		vault:     v,
		auth:      auth,
		hotkey:    hk,
		client:    client,
		log:       log.WithComponent("ipc"),
	}
	server := ipc.NewServer(cfg.IPC.SocketPath, daemon, log.WithComponent("ipc"))
	if err := server.Start(); err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer server.Stop()

	// Bridge mailbox events to subscribed IPC clients.
	ipcEvents, cancelIPC := mailbox.Subscribe()
	defer cancelIPC()
	go func() {
		for event := range ipcEvents {
			server.Broadcast(event)
		}
	}()

	// Hot reload for settings that can change without a restart.
	loader := config.NewLoader(configPath)
	loader.OnChange(func(updated *config.Config) {
		daemon.applyConfig(updated)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config watch unavailable", "error", err)
	}
	defer loader.Close()

	log.Info("ready", "shortcut", binding.String(), "socket", cfg.IPC.SocketPath)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// promptPermissionsOnce tells the user about the one-time OS consent the
// synthetic input layer needs. The flag keeps it to a single nag.
func promptPermissionsOnce(st *store.Store, mailbox *notify.Mailbox, log *logging.Logger) {
	if runtime.GOOS != "darwin" {
		return
	}
	_, prompted, err := st.GetSetting(store.SettingAccessibilityPrompted)
	if err != nil || prompted {
		return
	}
	mailbox.Publish(notify.Event{
		Type:    notify.TypeInfo,
		Title:   "Permission needed",
		Message: "Grant redraft Accessibility access in System Settings so it can copy and paste for you.",
	})
	if err := st.SetSetting(store.SettingAccessibilityPrompted, "1"); err != nil {
		log.Warn("saving permission prompt flag failed", "error", err)
	}
}
