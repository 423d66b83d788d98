package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/mcp"
	"github.com/cairnmem/cairn/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"store": true, "get": true, "stash": true, "search": true,
	"delete": true, "sweep": true, "rebuild": true,
	"projects": true, "stats": true,
}

// runMode selects what the binary does based on its first argument.
type runMode int

const (
	modeServer runMode = iota // stdio MCP server, the default
	modeCLI                   // known subcommand
	modeHelp                  // help/version, no store needed
)

// classifyArgs picks the run mode from the first argument. Help and
// version requests short-circuit before any store is opened; anything
// unrecognized falls through to server mode so piped MCP traffic is
// never misread as a CLI invocation.
func classifyArgs(args []string) runMode {
	if len(args) < 2 {
		return modeServer
	}
	switch arg := args[1]; {
	case arg == "--help", arg == "-h", arg == "--version", arg == "-v", arg == "help":
		return modeHelp
	case cliCommands[arg]:
		return modeCLI
	default:
		return modeServer
	}
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ___ __ _(_)_ _ _ _
   / __/ _' | | '_| ' \
  | (_| (_| | | | | | |
   \___\__,_|_|_| |_|_|

  Working-memory GC for coding agents

  Usage: cairn <command> [options]
         cairn --help

  MCP server mode requires piped input.`)
}

func main() {
	mode := classifyArgs(os.Args)

	// No args + interactive terminal → show banner and exit
	if mode == modeServer && len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if mode == modeHelp {
		app := newCLIApp(nil, nil)
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

	baseDir := filepath.Join(homeDir, ".cairn")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(baseDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open store: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if mode == modeCLI {
		app := newCLIApp(st, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cairn --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(st, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
