// kvmhost - keyboard and mouse sharing host
// Captures the primary screen's input and relays it to neighbouring screens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"kvmhost/internal/autostart"
	"kvmhost/internal/clipboard"
	"kvmhost/internal/config"
	"kvmhost/internal/network"
	"kvmhost/internal/osutils"
	"kvmhost/internal/primary"
	"kvmhost/internal/switcher"
	"kvmhost/internal/tray"
)

var (
	version    = "0.3.0"
	configPath = flag.String("config", "", "Path to the configuration file")
	debug      = flag.Bool("debug", false, "Log every captured event")
	showTray   = flag.Bool("tray", true, "Show the system tray icon (overrides config)")
	logFile    = flag.String("log", "", "Write capture logs to this file while running")
	writeCfg   = flag.Bool("write-config", false, "Write the effective configuration and exit")
	autoStart  = flag.String("autostart", "", "Enable (on) or disable (off) starting at login, then exit")
	showVer    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("kvmhost version %s\n", version)
		return
	}

	if *autoStart != "" {
		if err := setAutostart(*autoStart); err != nil {
			log.Fatalf("Autostart: %v", err)
		}
		fmt.Printf("Start at login: %v\n", autostart.IsEnabled())
		return
	}

	cfgMgr, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgMgr.Get()
	applyFlags(cfg)

	if *writeCfg {
		if err := cfgMgr.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", cfgMgr.Path())
		return
	}

	if err := runService(cfgMgr, cfg); err != nil {
		log.Fatalf("kvmhost: %v", err)
	}
}

// applyFlags lets flags given on the command line win over the file.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.General.Debug = *debug
		case "tray":
			cfg.General.ShowTray = *showTray
		}
	})
}

func setAutostart(value string) error {
	switch value {
	case "on":
		return autostart.Enable()
	case "off":
		return autostart.Disable()
	}
	return fmt.Errorf("expected on or off, got %q", value)
}

func loadConfig() (*config.Manager, error) {
	var cfgMgr *config.Manager
	if *configPath != "" {
		cfgMgr = config.NewManagerAt(*configPath)
	} else {
		var err error
		if cfgMgr, err = config.NewManager(); err != nil {
			return nil, err
		}
	}
	if err := cfgMgr.Load(); err != nil {
		return nil, err
	}
	return cfgMgr, nil
}

func runService(cfgMgr *config.Manager, cfg *config.Config) error {
	log.Printf("kvmhost %s starting as %q", version, cfg.Screen.Name)

	platform, err := primary.NewPlatform(log.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize input capture: %w", err)
	}

	opts := primary.Options{
		Logger:       log.Default(),
		Debug:        cfg.General.Debug,
		JumpZoneSize: cfg.Screen.JumpZoneSize,
		Copier:       clipboard.NewText(),
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		opts.LogOutput = io.MultiWriter(os.Stderr, f)
	}
	screen := primary.New(platform, opts)

	if runtime.GOOS == "windows" {
		go func() {
			if err := osutils.EnsureFirewallRules(osutils.HostRules(cfg.General.UDPPort, cfg.General.ControlPort)); err != nil {
				log.Printf("Firewall warning: %v", err)
			}
		}()
	}

	sender := network.NewUDPSender(cfg.General.UDPPort)
	hub := network.NewControlHub()

	sw, err := switcher.New(cfg, screen, sender, hub)
	if err != nil {
		return err
	}
	sender.OnRegister = func(string) { sw.AgentsChanged() }
	hub.OnClipboard = sw.ReceiveClipboard

	if err := sender.Start(); err != nil {
		return fmt.Errorf("failed to start UDP sender: %w", err)
	}
	defer sender.Stop()

	go hub.Run()
	defer hub.Stop()

	var httpServer *http.Server
	if cfg.General.ControlPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		httpServer = &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(cfg.General.ControlPort)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Control: Listening on %s", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Control server error: %v", err)
			}
		}()
	}

	if err := screen.Open(sw); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgMgr.RegisterChangeCallback(func() {
		next := cfgMgr.Get()
		applyFlags(next)
		screen.Do(func() {
			if err := sw.SetConfig(next); err != nil {
				log.Printf("Config: %v", err)
			}
		})
	})
	go func() {
		if err := cfgMgr.Watch(ctx); err != nil {
			log.Printf("Config: not watching for changes: %v", err)
		}
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- screen.Run(ctx)
		cancel()
	}()

	if cfg.General.ShowTray {
		runTray(ctx, cfg, screen, sw)
		cancel()
	} else {
		log.Println("kvmhost running. Press Ctrl+C to stop.")
		<-ctx.Done()
	}

	log.Println("Shutting down...")
	if err := <-runDone; err != nil && !errors.Is(err, primary.ErrClosed) {
		log.Printf("Dispatch loop: %v", err)
	}
	screen.Close()

	if httpServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// runTray blocks in the tray loop until Quit is chosen or ctx is done.
func runTray(ctx context.Context, cfg *config.Config, screen *primary.Screen, sw *switcher.Switcher) {
	t := tray.New("kvmhost - " + cfg.Screen.Name)

	t.AddMenuItem("Return to this screen", func() {
		screen.Do(sw.Escape)
	})

	var login int
	login = t.AddCheckbox("Start at login", autostart.IsEnabled(), func() {
		var err error
		if autostart.IsEnabled() {
			err = autostart.Disable()
		} else {
			err = autostart.Enable()
		}
		if err != nil {
			log.Printf("Autostart: %v", err)
		}
		t.SetItemChecked(login, autostart.IsEnabled())
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	sw.SetOnSwitch(func(active string) {
		t.SetStatus("Active: " + active)
	})

	go func() {
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.Quit():
		}
	}()

	log.Println("kvmhost running in the system tray.")
	t.Run()
}
