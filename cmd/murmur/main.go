package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/murmur/internal/capture"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/gemini"
	"github.com/hpungsan/murmur/internal/kv"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/mcp"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"new": true, "record": true, "ingest": true,
	"list": true, "search": true, "show": true,
	"delete": true, "purge": true, "export": true,
	"theme": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __  __ _   _ ___ __  __ _   _ ___
  |  \/  | | | | _ \  \/  | | | | _ \
  | |\/| | |_| |   / |\/| | |_| |   /
  |_|  |_|\___/|_|_\_|  |_|\___/|_|_\

  Local voice note studio

  Usage: murmur <command> [options]
         murmur --help

  MCP server mode requires piped input.`)
}

// buildEnv opens the store and wires the transcription pipeline.
func buildEnv(baseDir string) (*appEnv, func(), error) {
	logRuntime, err := logging.New(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logRuntime.Logger

	slots, err := kv.Init(baseDir)
	if err != nil {
		logRuntime.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		slots.Close()
		logRuntime.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slots.ConfigurePool(cfg)

	st := store.New(slots, logger)
	if err := st.Load(context.Background()); err != nil {
		slots.Close()
		logRuntime.Close()
		return nil, nil, fmt.Errorf("failed to load notes: %w", err)
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	model := gemini.NewClient(cfg.ModelBaseURL, cfg.ModelName, os.Getenv(cfg.APIKeyEnv), timeout)

	titleOpts := note.TitleOptions{MinChars: cfg.TitleMinChars, MaxChars: cfg.TitleMaxChars}
	runner := pipeline.NewRunner(model, logger, cfg.MaxUploadBytes, titleOpts, timeout)

	capSess := capture.NewSession(&capture.PulseSource{}, cfg.AudioInput, logger)

	coord, err := session.New(st, runner, capSess, logger)
	if err != nil {
		slots.Close()
		logRuntime.Close()
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	env := &appEnv{
		store:  st,
		coord:  coord,
		cfg:    cfg,
		logger: logger,
	}
	cleanup := func() {
		slots.Close()
		logRuntime.Close()
	}
	return env, cleanup, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before store init (no store needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	env, cleanup, err := buildEnv(filepath.Join(homeDir, ".murmur"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'murmur --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env.store, env.coord, env.cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
