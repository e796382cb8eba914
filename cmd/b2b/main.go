package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"b2b/internal/transform"
)

var logLevel string

func main() {
	app := &cli.Command{
		Name:      "b2b",
		Usage:     "Losslessly convert binary files into valid bitmap images and back",
		ArgsUsage: "[file ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log verbosity (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
			},
		},
		Commands: []*cli.Command{
			packCmd(),
			unpackCmd(),
			inspectCmd(),
			versionCmd(),
		},
		// A bare `b2b <file>` picks the direction from the extension:
		// bitmaps are unpacked, everything else is packed.
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return cli.ShowAppHelp(cmd)
			}
			cfg := loadConfig()
			log := newLogger(cmd, cfg)
			opts := optionsFromConfig(cfg)
			for _, path := range args {
				if strings.EqualFold(filepath.Ext(path), transform.BmpExt) {
					out, result, err := transform.UnpackFile(path, opts)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: unpack %s: %v", path, err), 1)
					}
					log.Info("unpacked", "from", path, "to", out)
					if opts.Verify {
						reportVerify(log, out, result)
					}
				} else {
					out, err := transform.PackFile(path, opts)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: pack %s: %v", path, err), 1)
					}
					log.Info("packed", "from", path, "to", out, "digest", opts.Digest)
				}
			}
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
