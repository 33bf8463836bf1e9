package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opaline/dbbridge/internal/api"
	"github.com/opaline/dbbridge/internal/audit"
	"github.com/opaline/dbbridge/internal/auth"
	"github.com/opaline/dbbridge/internal/chat"
	"github.com/opaline/dbbridge/internal/config"
	"github.com/opaline/dbbridge/internal/db"
	"github.com/opaline/dbbridge/internal/llm"
	"github.com/opaline/dbbridge/internal/mcp"
	"github.com/opaline/dbbridge/internal/tools"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "hash-password":
		cmdHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("dbbridge %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dbbridge — database tools over a session-multiplexed MCP endpoint,
with a natural-language chat front end

Usage:
  dbbridge serve [--config config.toml] [--addr :8080]
  dbbridge hash-password <password>
  dbbridge version
  dbbridge help

Commands:
  serve          Start the HTTP server
  hash-password  Print a bcrypt hash for the admin password config field
  version        Print version
  help           Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	auditDB, err := db.Open(cfg.Database.AuditPath)
	if err != nil {
		slog.Error("opening audit database", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	auditLog, err := audit.NewSQLiteLogger(auditDB.DB)
	if err != nil {
		slog.Error("initializing audit log", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	registry := mcp.NewRegistry()
	if err := tools.RegisterAll(registry, database, auditLog); err != nil {
		slog.Error("registering tools", "error", err)
		os.Exit(1)
	}

	dispatcher := mcp.NewDispatcher("dbbridge", version, registry)
	sessions := mcp.NewSessionStore(dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.RunSweeper(ctx,
		time.Duration(cfg.Session.SweepIntervalSec)*time.Second,
		time.Duration(cfg.Session.IdleTimeoutMin)*time.Minute)

	llmClient := llm.NewFromConfig(cfg.LLM)
	chatSvc := chat.NewService(llmClient, database)
	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	webAPI := api.New(chatSvc, a, cfg.Auth, version)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewHTTPHandler(sessions))
	webAPI.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.SecurityHeaders(mux),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
		sessions.CloseAll()
	}()

	slog.Info("dbbridge listening", "version", version, "addr", cfg.Server.Addr)
	slog.Info("database opened", "path", cfg.Database.Path)
	slog.Info("llm providers", "chain", llmClient.Providers())

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdHashPassword(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: dbbridge hash-password <password>")
		os.Exit(1)
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashing password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
