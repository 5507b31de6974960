// Command nova-hub runs the command arbitration service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/nova/internal/arbiter"
	"github.com/ayusman/nova/internal/config"
	"github.com/ayusman/nova/internal/logging"
	"github.com/ayusman/nova/internal/plugin"
	"github.com/ayusman/nova/internal/server"
	"github.com/ayusman/nova/internal/store"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.nova/config.json)")
	addr := flag.String("addr", "", "listen address, overrides hub.addr")
	dbPath := flag.String("db", "", "journal database, overrides hub.db_path")
	noJournal := flag.Bool("no-journal", false, "do not record commands")
	pluginDir := flag.String("plugins", "", "hook plugin directory, overrides hub.plugin_dir")
	staticDir := flag.String("static", "", "directory served at /, overrides hub.static_dir")
	flag.Parse()

	logging.Init("nova-hub")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Errorw("load config", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	h := cfg.Hub
	if *addr != "" {
		h.Addr = *addr
	}
	if *dbPath != "" {
		h.DBPath = config.ExpandHome(*dbPath)
	}
	if *noJournal {
		h.DBPath = ""
	}
	if *pluginDir != "" {
		h.PluginDir = config.ExpandHome(*pluginDir)
	}
	if *staticDir != "" {
		h.StaticDir = config.ExpandHome(*staticDir)
	}
	if h.StaticDir == "" {
		h.StaticDir = findWebDir()
	}

	if err := run(h); err != nil {
		logging.Errorw("hub stopped", "err", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func run(h config.HubConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := server.NewFeed()
	go feed.Run(ctx)

	opts := []arbiter.Option{
		arbiter.WithMaxAge(h.MaxAge.D()),
		arbiter.WithObserver(feed),
	}

	var st *store.Store
	if h.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(h.DBPath), 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		var err error
		st, err = store.New(h.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		journal, err := store.NewJournal(st, h.MaxAge.D(), h.JournalQueue)
		if err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, arbiter.WithObserver(journal))
		logging.Infow("journal enabled", "db", h.DBPath, "session", journal.SessionID())
	}

	if h.PluginDir != "" {
		mgr := plugin.NewManager(h.PluginDir)
		if err := mgr.Discover(); err != nil {
			logging.Warnw("plugin discovery failed", "dir", h.PluginDir, "err", err)
		}
		if len(mgr.List()) > 0 {
			dispatcher := plugin.NewDispatcher(mgr, plugin.NewExecutor(h.PluginTimeout.D()), h.PluginWorkers, 0)
			defer dispatcher.Close()
			opts = append(opts, arbiter.WithObserver(dispatcher))
		}
	}

	if h.StaticDir != "" {
		logging.Infow("serving static files", "dir", h.StaticDir)
	}

	srv := server.New(server.Config{
		Arbiter:   arbiter.New(opts...),
		Store:     st,
		Feed:      feed,
		StaticDir: h.StaticDir,
	})
	return srv.ListenAndServe(ctx, h.Addr, h.ShutdownGrace.D())
}

// findWebDir looks for a web UI next to the working directory or in ~/.nova/web.
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	web := filepath.Join(dir, "web")
	if info, err := os.Stat(web); err == nil && info.IsDir() {
		return web
	}
	return ""
}
