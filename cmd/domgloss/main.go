// Command domgloss runs the inline page translation pipeline.
//
// Usage:
//
//	domgloss -file page.html                # translate a local file, print markdown
//	domgloss -url https://example.com       # translate a live page via Chrome
//	domgloss -url ... -listen :8090         # with the HTTP control API
//	domgloss -url ... -mcp :8443            # with MCP tools over QUIC
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domgloss/browser"
	"github.com/hazyhaar/domgloss/dbopen"
	"github.com/hazyhaar/domgloss/dom"
	"github.com/hazyhaar/domgloss/gloss"
	"github.com/hazyhaar/domgloss/httpapi"
	"github.com/hazyhaar/domgloss/mcpquic"
	"github.com/hazyhaar/domgloss/observability"
	"github.com/hazyhaar/domgloss/prefs"
	"github.com/hazyhaar/domgloss/translate"
)

func main() {
	configPath := flag.String("config", "", "path to gloss.yaml config file")
	filePath := flag.String("file", "", "translate a local HTML file and print markdown")
	pageURL := flag.String("url", "", "translate a live page via Chrome")
	listen := flag.String("listen", "", "serve the HTTP control API on this address")
	mcpAddr := flag.String("mcp", "", "serve MCP tools over QUIC on this address")
	dbPath := flag.String("db", "", "SQLite path for preferences and metrics (default in-memory)")
	remote := flag.String("remote", "", "WebSocket URL of an external Chrome instance")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *filePath, *pageURL, *listen, *mcpAddr, *dbPath, *remote); err != nil {
		logger.Error("domgloss: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, filePath, pageURL, listen, mcpAddr, dbPath, remote string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if filePath != "" {
		return runFile(ctx, logger, cfg, filePath)
	}
	if pageURL != "" {
		return runPage(ctx, logger, cfg, pageURL, listen, mcpAddr, dbPath, remote)
	}

	fmt.Fprintln(os.Stderr, "usage: domgloss -file <page.html> | -url <url> [-listen <addr>]")
	os.Exit(1)
	return nil
}

func loadConfig(path string) (*gloss.Config, error) {
	if path == "" {
		return gloss.DefaultConfig(), nil
	}
	return gloss.LoadConfigFile(path)
}

// runFile translates a local HTML file with the loopback provider and
// prints the annotated document as markdown.
func runFile(ctx context.Context, logger *slog.Logger, cfg *gloss.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := dom.ParseString(string(data), "file://"+path)
	if err != nil {
		return err
	}

	src, err := language.Parse(cfg.Source)
	if err != nil {
		return fmt.Errorf("source language: %w", err)
	}
	tgt, err := language.Parse(cfg.Target)
	if err != nil {
		return fmt.Errorf("target language: %w", err)
	}
	lb := &translate.Loopback{Source: src, Target: tgt}

	p, err := gloss.New(cfg, doc, lb, lb, logger)
	if err != nil {
		return err
	}
	if err := p.Translate(ctx); err != nil {
		return err
	}

	md, err := p.ExportMarkdown()
	if err != nil {
		return err
	}
	fmt.Print(md)
	return nil
}

// runPage hosts the pipeline on a live Chrome page, with persistence and
// the control API when configured.
func runPage(ctx context.Context, logger *slog.Logger, cfg *gloss.Config, pageURL, listen, mcpAddr, dbPath, remote string) error {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := prefs.Init(ctx, db); err != nil {
		return fmt.Errorf("prefs schema: %w", err)
	}
	if err := observability.Init(ctx, db); err != nil {
		return fmt.Errorf("metrics schema: %w", err)
	}
	store := prefs.NewStore(db)
	metrics := observability.NewMetrics(db, 0, 0, logger)
	defer metrics.Close()

	host, err := browser.Open(ctx, browser.Config{
		RemoteURL:   remote,
		Stealth:     true,
		ScreenChars: cfg.Tuning.ScreenChars,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer host.Close()

	if err := host.OpenPage(ctx, pageURL); err != nil {
		return err
	}
	detector, translator := host.Capabilities()

	p, err := gloss.New(cfg, host.Document(), detector, translator, logger,
		gloss.WithMetrics(metrics))
	if err != nil {
		return err
	}

	enabled, err := store.Enabled(ctx)
	if err != nil {
		logger.Warn("domgloss: read persisted toggle", "error", err)
	}
	p.Start(ctx, enabled)
	defer p.Stop()

	go host.Run(ctx)

	watcher := prefs.NewWatcher(store, prefs.WatchOptions{
		Interval: time.Second,
		Debounce: 200 * time.Millisecond,
		Logger:   logger,
	})
	go watcher.Run(ctx, p.SetEnabled)

	if mcpAddr != "" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "domgloss", Version: "1.0.0"}, nil)
		p.RegisterMCP(mcpSrv)
		tlsCfg, err := mcpquic.SelfSignedTLSConfig()
		if err != nil {
			return fmt.Errorf("mcp tls: %w", err)
		}
		ln, err := mcpquic.NewListener(mcpAddr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp listen: %w", err)
		}
		defer ln.Close()
		go func() {
			if err := ln.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("domgloss: mcp serve", "error", err)
			}
		}()
	}

	logger.Info("domgloss: running", "url", pageURL, "enabled", enabled)

	if listen != "" {
		handler := httpapi.New(p, store, logger)
		logger.Info("domgloss: control api listening", "addr", listen)
		return httpapi.Serve(ctx, listen, handler)
	}

	<-ctx.Done()
	return nil
}
