package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"b2b/internal/bitmap"
)

// headerSummary is the flattened view of a converted file's header used by
// both the row and JSON output of inspect.
type headerSummary struct {
	File             string `json:"file"`
	FileSize         int64  `json:"file_size"`
	DeclaredSize     uint32 `json:"declared_size"`
	Width            uint32 `json:"width"`
	Height           uint32 `json:"height"`
	BitsPerPixel     uint16 `json:"bits_per_pixel"`
	PixmapSize       uint32 `json:"pixmap_size"`
	PaddingSize      uint32 `json:"padding_size"`
	OriginalFileSize uint32 `json:"original_file_size"`
	Digest           string `json:"digest,omitempty"`
	Valid            bool   `json:"valid"`
	Error            string `json:"error,omitempty"`
}

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the conversion header of a packed bitmap",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit the summary as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("inspect takes exactly one file argument", 2)
			}
			path := cmd.Args().First()

			f, err := os.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open %s: %v", path, err), 1)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %s: %v", path, err), 1)
			}
			hdr, err := bitmap.ReadHeader(f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %s: %v", path, err), 1)
			}

			s := headerSummary{
				File:             path,
				FileSize:         info.Size(),
				DeclaredSize:     hdr.File.FileSize,
				Width:            hdr.File.Width,
				Height:           hdr.File.Height,
				BitsPerPixel:     hdr.File.BitsPerPixel,
				PixmapSize:       hdr.File.PixmapSize,
				PaddingSize:      hdr.Conv.PaddingSize,
				OriginalFileSize: hdr.Conv.OriginalFileSize,
				Valid:            true,
			}
			if fp, ok := hdr.Conv.Digest.Fingerprint(); ok {
				s.Digest = fp.String()
			}
			if err := hdr.Validate(); err != nil {
				s.Valid = false
				s.Error = err.Error()
			}

			if asJSON {
				out, err := json.MarshalIndent(s, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode summary: %v", err), 1)
				}
				fmt.Println(string(out))
			} else {
				printSummary(s)
			}
			if !s.Valid {
				return cli.Exit("error: "+s.Error, 1)
			}
			return nil
		},
	}
}

func printSummary(s headerSummary) {
	row("file", s.File)
	row("file_size", fmt.Sprintf("%d", s.FileSize))
	row("declared_size", fmt.Sprintf("%d", s.DeclaredSize))
	row("geometry", fmt.Sprintf("%dx%d @ %d bpp", s.Width, s.Height, s.BitsPerPixel))
	row("pixmap_size", fmt.Sprintf("%d", s.PixmapSize))
	row("padding_size", fmt.Sprintf("%d", s.PaddingSize))
	row("original_file_size", fmt.Sprintf("%d", s.OriginalFileSize))
	if s.Digest != "" {
		row("digest", s.Digest)
	} else {
		row("digest", "none")
	}
	if s.Valid {
		row("valid", "yes")
	} else {
		row("valid", "no: "+s.Error)
	}
}

func row(label, value string) {
	fmt.Printf("%-20s %s\n", label+":", value)
}
