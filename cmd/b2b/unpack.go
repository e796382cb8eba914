package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"b2b/internal/bitmap"
	"b2b/internal/transform"
)

func unpackCmd() *cli.Command {
	var (
		verify   bool
		inPlace  bool
		keepName bool
		force    bool
	)

	return &cli.Command{
		Name:      "unpack",
		Usage:     "Restore the original file hidden in a bitmap",
		ArgsUsage: "<file" + transform.BmpExt + ">",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verify",
				Aliases:     []string{"v"},
				Usage:       "check the embedded fingerprint after restoring",
				Destination: &verify,
			},
			&cli.BoolFlag{
				Name:        "in-place",
				Usage:       "mutate the file directly instead of staging a copy",
				Destination: &inPlace,
			},
			&cli.BoolFlag{
				Name:        "keep-name",
				Usage:       "do not strip the " + transform.BmpExt + " extension",
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
				return cli.Exit("unpack takes exactly one file argument", 2)
			}
			path := cmd.Args().First()

			cfg := loadConfig()
			applyConvertConfig(cmd, cfg, nil, &verify, &inPlace, &keepName)
			log := newLogger(cmd, cfg)

			opts := transform.Options{Verify: verify, InPlace: inPlace, KeepName: keepName}
			if err := confirmConvert(path, transform.UnpackTarget(path, keepName), inPlace, force); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			out, result, err := transform.UnpackFile(path, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: unpack %s: %v", path, err), 1)
			}
			log.Info("unpacked", "from", path, "to", out)
			if verify {
				reportVerify(log, out, result)
				if result == bitmap.VerifyMismatch {
					// The restoration itself is complete; only the exit
					// status reflects the mismatch.
					return cli.Exit("verification failed: restored contents do not match the embedded fingerprint", 1)
				}
			}
			return nil
		},
	}
}

func reportVerify(log *slog.Logger, path string, result bitmap.VerifyResult) {
	switch result {
	case bitmap.VerifyOK:
		log.Info("verification passed", "file", path)
	case bitmap.VerifyMismatch:
		log.Warn("verification failed", "file", path)
	default:
		log.Info("verification not possible: no fingerprint was embedded", "file", path)
	}
}
