package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pricecmp/api"
	"pricecmp/cache"
	"pricecmp/config"
	"pricecmp/coordinator"
	"pricecmp/filtersort"
	"pricecmp/heartbeat"
	"pricecmp/internal/version"
	"pricecmp/ledger"
	"pricecmp/pages"
	"pricecmp/ranking"
	"pricecmp/scheduler"
	"pricecmp/source"
	"pricecmp/store"
)

func main() {
	configPath := flag.String("config", "/etc/pricecmp/pricecmp.yaml", "path to config file")
	showVersionShort := flag.Bool("v", false, "print version information")
	showVersion := flag.Bool("version", false, "print version information")
	flag.Parse()

	if *showVersionShort || *showVersion {
		fmt.Printf(
			"pricecmp %s\ncommit: %s\nbuild: %s\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("pricecmp starting",
		"listen", cfg.Server.Listen,
		"grpc_listen", cfg.Server.GRPCListen,
		"store", cfg.Store.Driver,
		"menus", cfg.Source.Menus,
		"version", version.Version,
		"commit", version.Commit,
		"build_time", version.BuildTime,
	)

	st, err := store.Open(&cfg.Store, logger.With("component", "store"))
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	led := ledger.New(st, ledger.Options{
		HistoryLimit:   cfg.Search.HistoryLimit,
		FavoritesLimit: cfg.Search.FavoritesLimit,
	}, logger.With("component", "ledger"))

	ranker := ranking.New(ranking.Options{
		Threshold:          cfg.Search.Threshold,
		LengthPolicy:       ranking.ParseLengthPolicy(cfg.Search.LengthPolicy),
		IncludeVendorCodes: cfg.Search.IncludeVendorCodes,
	})
	fs := filtersort.New(filtersort.ParseLocale(cfg.Search.Locale))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{Timeout: cfg.Source.Timeout}
	var menus source.MenuSource
	var fileMenus *source.FileMenus
	switch cfg.Source.Menus {
	case config.MenusFile:
		fileMenus = source.NewFileMenus(cfg.Source.MenusDir, logger.With("component", "menus"))
		menus = fileMenus
	default:
		menus = source.NewHTTPMenus(cfg.Source.SnappfoodURL, cfg.Source.TapsifoodURL, client, logger.With("component", "menus"))
	}

	c := cache.New(&cfg.Cache, nil)
	upstream := source.NewHTTP(&cfg.Source, menus, client, logger.With("component", "source"))
	provider := source.NewCached(upstream, c, cfg.Source.VendorTTL, cfg.Source.VendorListTTL, logger.With("component", "source_cache"))

	if fileMenus != nil && cfg.Source.WatchMenus {
		go func() {
			err := fileMenus.Watch(ctx, func(path string) {
				logger.Info("menu file changed, invalidating datasets", "path", path)
				provider.Invalidate()
			})
			if err != nil {
				logger.Error("menu watcher stopped", "err", err)
			}
		}()
	}

	registry, err := pages.NewRegistry(pages.Deps{
		Provider:   provider,
		Ledger:     led,
		Ranker:     ranker,
		FilterSort: fs,
		Analytics:  pages.LogAnalytics{Log: logger.With("component", "analytics")},
	}, pages.Options{
		MaxSessions:  cfg.Sessions.MaxSessions,
		IdleTTL:      cfg.Sessions.IdleTTL,
		Debounce:     cfg.Search.Debounce,
		FormatStatus: coordinator.StatusFormatter(cfg.Search.Locale),
	}, logger.With("component", "pages"))
	if err != nil {
		logger.Error("failed to create page registry", "err", err)
		os.Exit(1)
	}

	sched := scheduler.New(&cfg.Scheduler, c, provider, registry, logger.With("component", "scheduler"))
	sched.Start(ctx)

	hb := heartbeat.New(cfg.Heartbeat.Interval, logger.With("component", "heartbeat"))
	hb.Register(heartbeat.ComponentStore, heartbeat.StoreCheck(st))
	hb.Register(heartbeat.ComponentSource, heartbeat.SourceCheck(provider))
	hb.Register("sessions", heartbeat.SessionsCheck(registry, cfg.Sessions.MaxSessions))
	hb.Register("cache", heartbeat.CacheCheck(c))
	hb.Start(ctx)

	srv := api.NewServer(api.Deps{
		Config:     cfg,
		Pages:      registry,
		Ledger:     led,
		Provider:   provider,
		Ranker:     ranker,
		FilterSort: fs,
		Cache:      provider,
		Scheduler:  sched,
		Heartbeat:  hb,
		Logger:     logger.With("component", "api"),
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	go watchdog()

	logger.Info("pricecmp ready",
		"listen", cfg.Server.Listen,
		"pid", os.Getpid(),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sched.Stop()
	hb.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}

	registry.CloseAll()
	cancel()
	logger.Info("pricecmp stopped")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		os.MkdirAll(dir, 0755)

		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Error("failed to open log file, using stderr", "err", err)
			return slog.New(slog.NewJSONHandler(os.Stderr, opts))
		}
		return slog.New(slog.NewJSONHandler(f, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func watchdog() {
	sock := os.Getenv("NOTIFY_SOCKET")
	if sock == "" {
		return
	}

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		conn, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_DGRAM, 0)
		if err != nil {
			continue
		}
		sa := &syscall.SockaddrUnix{Name: sock}
		_ = syscall.Sendmsg(conn, []byte("WATCHDOG=1"), nil, sa, 0)
		syscall.Close(conn)
	}
}
