// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/jeranaias/gemchat/internal/config"
	"github.com/jeranaias/gemchat/internal/ui/styles"
	"github.com/jeranaias/gemchat/internal/util"
)

// HandleConfig runs "gemchat config <subcommand>". It does not need the
// session store or the log file.
func HandleConfig(args Args, out io.Writer) error {
	sub := args.Sub()

	path := args.ConfigPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	path = util.ExpandHome(path)

	switch strings.ToLower(sub.Subcommand()) {
	case "", "show":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n", path)
		fmt.Fprint(out, cfg.String())
		return nil

	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil && !sub.BoolFlag("force") {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		cfg := config.Default()
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintln(out, styles.RenderSuccess("Wrote "+path))
		return nil

	default:
		return fmt.Errorf("unknown config subcommand %q (want show, path or init)", sub.Subcommand())
	}
}
