package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"github.com/tsawler/inkpage"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/render"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Build the caches of a document and print its page counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loader(args[0]).Load()
		if err != nil {
			return err
		}
		defer doc.Close()

		out := cmd.OutOrStdout()
		meta := doc.Metadata()
		fmt.Fprintf(out, "title:    %s\n", meta.Title)
		if len(meta.Authors) > 0 {
			fmt.Fprintf(out, "authors:  %s\n", strings.Join(meta.Authors, ", "))
		}
		fmt.Fprintf(out, "format:   %s\n", meta.Format)
		fmt.Fprintf(out, "sections: %d\n", doc.SectionCount())

		total := 0
		for s := 0; s < doc.SectionCount(); s++ {
			n, err := doc.PageCount(s)
			if err != nil {
				log.Warn("section failed", "section", s, "error", err)
				continue
			}
			total += n
		}
		fmt.Fprintf(out, "pages:    %d\n", total)
		return nil
	},
}

var (
	pageSection int
	pageBMP     string
)

var pageCmd = &cobra.Command{
	Use:   "page <file> <n>",
	Short: "Render page n (1-based) of a section",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int
		if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil || n < 1 {
			return fmt.Errorf("invalid page number %q", args[1])
		}
		doc, err := loader(args[0]).Load()
		if err != nil {
			return err
		}
		defer doc.Close()

		page, err := doc.LoadPage(model.Position{Section: pageSection, Page: n - 1})
		if err != nil {
			return err
		}
		frame := render.Frame{Title: doc.Metadata().Title, Page: page, Selected: -1}

		if pageBMP == "" {
			return render.NewTextSink(cmd.OutOrStdout(), 0).Present(frame)
		}
		cfg := manager.Get()
		sink, err := render.NewImageSink(cfg.Layout.ScreenWidth, cfg.Layout.ScreenHeight, cfg.Layout.FontFace)
		if err != nil {
			return err
		}
		if err := sink.Present(frame); err != nil {
			return err
		}
		f, err := os.Create(pageBMP)
		if err != nil {
			return err
		}
		if err := sink.WriteBMP(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var tocCmd = &cobra.Command{
	Use:   "toc <file>",
	Short: "Print the table of contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loader(args[0]).Load()
		if err != nil {
			return err
		}
		defer doc.Close()
		fmt.Fprint(cmd.OutOrStdout(), tocTree(doc.Metadata().Title, doc.TOC()).Print())
		return nil
	},
}

// tocTree nests entries by level under a root labeled title.
func tocTree(title string, toc []model.TOCEntry) gotree.Tree {
	root := gotree.New(title)
	stack := []gotree.Tree{root}
	for _, e := range toc {
		depth := max(e.Level, 1)
		if depth > len(stack) {
			depth = len(stack)
		}
		stack = stack[:depth]
		label := fmt.Sprintf("%s  [%d:%d]", e.Title, e.Position.Section+1, e.Position.Page+1)
		stack = append(stack, stack[depth-1].Add(label))
	}
	return root
}

var coverOut string

var coverCmd = &cobra.Command{
	Use:   "cover <file>",
	Short: "Extract the cover image as BMP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loader(args[0]).Load()
		if err != nil {
			return err
		}
		defer doc.Close()

		img, ok := doc.Cover()
		if !ok {
			return fmt.Errorf("%s has no cover", args[0])
		}
		f, err := os.Create(coverOut)
		if err != nil {
			return err
		}
		if err := bmp.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache <file>",
	Short: "Remove every cache folder built for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := inkpage.InvalidateAll(cacheDir(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared cache for %s\n", args[0])
		return nil
	},
}

func init() {
	pageCmd.Flags().IntVar(&pageSection, "section", 0, "section index (0-based)")
	pageCmd.Flags().StringVar(&pageBMP, "bmp", "", "write the page as a BMP image instead of text")
	coverCmd.Flags().StringVarP(&coverOut, "out", "o", "cover.bmp", "output file")
}
