package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"

	"github.com/tsawler/inkpage/storage"
	"github.com/tsawler/inkpage/xtc"
)

var (
	packDepth    int
	packTitle    string
	packDither   bool
	packChapters []string
)

var packCmd = &cobra.Command{
	Use:   "pack <out.xtc> <image>...",
	Short: "Pack page images into an XTC or XTCH container",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, images := args[0], args[1:]
		title := packTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
		}

		w := xtc.NewWriter(title, packDepth)
		for _, path := range images {
			img, err := decodeImage(path)
			if err != nil {
				return err
			}
			if err := w.AddPage(xtc.FromImage(img, packDepth, packDither)); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		for _, c := range packChapters {
			start, name, ok := strings.Cut(c, ":")
			n, err := strconv.Atoi(start)
			if !ok || err != nil || n < 1 {
				return fmt.Errorf("chapter %q: want <first page>:<title>", c)
			}
			w.AddChapter(name, n-1, -1)
		}

		var buf bytes.Buffer
		if _, err := w.WriteTo(&buf); err != nil {
			return err
		}
		if err := storage.WriteFileAtomic(storage.Default, out, buf.Bytes()); err != nil {
			return err
		}
		log.Info("packed container", "path", out, "pages", len(images))
		return nil
	},
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func init() {
	packCmd.Flags().IntVar(&packDepth, "depth", 1, "bits per pixel: 1 (XTC) or 2 (XTCH)")
	packCmd.Flags().StringVar(&packTitle, "title", "", "container title (default: output file name)")
	packCmd.Flags().BoolVar(&packDither, "dither", false, "dither when reducing to the page depth")
	packCmd.Flags().StringArrayVar(&packChapters, "chapter", nil, "chapter as <first page>:<title>, repeatable")
}
