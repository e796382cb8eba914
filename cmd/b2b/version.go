package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

const Version = "1.0.0"

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("b2b version %s\n", Version)
			return nil
		},
	}
}
