// gemchat - chat with Gemini and Ollama models in your terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/gemchat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cmd, args := cli.Parse(argv)

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return nil
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return nil
	case cli.CmdConfig:
		return cli.HandleConfig(args, os.Stdout)
	case cli.CmdUnknown:
		cli.PrintUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", args.Name)
	}

	// Ctrl+C belongs to the TUI and the REPL; only SIGTERM ends the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case cli.CmdSessions:
		return cli.HandleSessions(ctx, app, args, os.Stdout)
	case cli.CmdChat:
		return cli.RunChat(ctx, app)
	default:
		if !cli.IsInteractive() {
			return cli.RunChat(ctx, app)
		}
		return cli.RunTUI(ctx, app)
	}
}
