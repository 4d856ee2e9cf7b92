package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/logging"
	"github.com/hpungsan/tagline/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "fetch": true, "show": true, "label": true, "annotate": true,
	"delete": true, "validate": true, "invalidate": true, "treat-all": true, "stats": true,
	"revalidate": true, "export": true, "import": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags (--backend, --help, --version) only make sense for the CLI.
	return len(arg) > 1 && arg[0] == '-'
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  tagline: label departure and arrival spans in sentences

  Usage: tagline <command> [options]
         tagline --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil, config.DefaultConfig())
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = homeDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	// stdout carries MCP frames and CLI JSON, so logs go to stderr.
	logging.InitLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logging.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logging.Warn("unknown types in disabled_types", "types", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		app := newCLIApp(database, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'tagline --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	gw, err := newGateway(database, cfg, "")
	if err != nil {
		database.Close()
		fatal("%v", err)
	}
	logging.ServerStartup("mcp", "stdio", "version", Version)
	if err := mcp.Run(database, cfg, gw, Version); err != nil {
		database.Close()
		fatal("%v", err)
	}
}
