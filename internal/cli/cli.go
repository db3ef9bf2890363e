// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - command-line parsing and usage text for gemchat.

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdSessions
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdSessions:
		return "sessions"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags; empty means "use the configured value".
	ConfigPath string
	Model      string
	Provider   string
	Storage    string
	Theme      string

	// Name is the command word as typed, kept for error messages.
	Name string

	// Raw holds the arguments after the command word.
	Raw []string
}

// Sub returns an ArgParser over the arguments after the command word.
func (a Args) Sub() *ArgParser {
	return NewArgParser(a.Raw)
}

const usageText = `gemchat - chat with Gemini and Ollama models in your terminal

Usage:
  gemchat                          Start the chat TUI (default)
  gemchat chat                     Line-mode chat (also used when not on a terminal)
  gemchat sessions list            List stored sessions
  gemchat sessions show <ref>      Print a session's transcript
  gemchat sessions export <ref>    Export a session to a file
      --format md|json             Output format (default: md)
      --out DIR                    Output directory (default: current directory)
  gemchat sessions delete <ref>    Delete a session
  gemchat config show              Print the effective configuration
  gemchat config path              Print the configuration file path
  gemchat config init [--force]    Write a default configuration file
  gemchat version                  Show version information
  gemchat help                     Show this help

A session <ref> is a session ID, a unique ID prefix, or its number in
"sessions list".

Global flags:
  --config PATH                    Configuration file (default: ~/.gemchat/config.toml)
  --provider gemini|ollama         Model provider
  --model NAME                     Model name
  --storage file|sqlite|redis|memory
                                   Session storage backend
  --theme auto|dark|light          Colour theme

Environment:
  GEMCHAT_API_KEY, GEMINI_API_KEY  Gemini API key
  GEMCHAT_PROVIDER, GEMCHAT_MODEL, GEMCHAT_STORAGE_BACKEND, GEMCHAT_LOG_LEVEL, ...
                                   Override the matching configuration keys

TUI keys:
  enter send   ctrl+n new chat   tab/shift+tab switch chat   ctrl+x delete chat
  esc stop reply   pgup/pgdown scroll   f1 help   ctrl+c quit

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "gemchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// Parse parses command-line arguments (without the program name) and returns
// the command and its args.
func Parse(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	parsed.Name = remaining[0]
	parsed.Raw = remaining[1:]

	switch strings.ToLower(remaining[0]) {
	case "tui":
		return CmdTUI, parsed
	case "chat":
		return CmdChat, parsed
	case "sessions", "session":
		return CmdSessions, parsed
	case "config":
		return CmdConfig, parsed
	case "version", "--version", "-V":
		return CmdVersion, parsed
	case "help", "--help", "-h":
		return CmdHelp, parsed
	default:
		return CmdUnknown, parsed
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	targets := map[string]*string{
		"--config":   &parsed.ConfigPath,
		"--model":    &parsed.Model,
		"--provider": &parsed.Provider,
		"--storage":  &parsed.Storage,
		"--theme":    &parsed.Theme,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if dst, ok := targets[arg]; ok {
			if i+1 < len(args) {
				i++
				*dst = args[i]
			}
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			if dst, ok := targets[name]; ok {
				*dst = value
				continue
			}
		}
		remaining = append(remaining, arg)
	}

	return remaining, parsed
}
