package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"b2b/internal/transform"
)

func packCmd() *cli.Command {
	var (
		withDigest bool
		inPlace    bool
		keepName   bool
		force      bool
	)

	return &cli.Command{
		Name:      "pack",
		Usage:     "Convert a binary file into a bitmap",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "digest",
				Aliases:     []string{"d"},
				Usage:       "embed a content fingerprint for later verification",
				Destination: &withDigest,
			},
			&cli.BoolFlag{
				Name:        "in-place",
				Usage:       "mutate the file directly instead of staging a copy",
				Destination: &inPlace,
			},
			&cli.BoolFlag{
				Name:        "keep-name",
				Usage:       "do not append " + transform.BmpExt + " to the file name",
				Destination: &keepName,
			},
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "skip confirmation prompts",
				Destination: &force,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("pack takes exactly one file argument", 2)
			}
			path := cmd.Args().First()

			cfg := loadConfig()
			applyConvertConfig(cmd, cfg, &withDigest, nil, &inPlace, &keepName)
			log := newLogger(cmd, cfg)

			opts := transform.Options{Digest: withDigest, InPlace: inPlace, KeepName: keepName}
			if err := confirmConvert(path, transform.PackTarget(path, keepName), inPlace, force); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			out, err := transform.PackFile(path, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: pack %s: %v", path, err), 1)
			}
			log.Info("packed", "from", path, "to", out, "digest", withDigest)
			return nil
		},
	}
}
