package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/dgallion1/liftplan/internal/render"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newConvertCmd() *cobra.Command {
	var (
		in          inputFlags
		formats     string
		out         string
		order       string
		compress    bool
		watchInputs bool
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Render a lift plan document",
		Long: `Expands the treadling through the sections and tie-up and writes one
document per requested format to OUT.<ext>.`,
		Example: `  liftplan convert --tieup tieup.csv --sections sections.csv --treadling treadling.csv --shafts 4
  liftplan convert --draft rosepath.yaml --format pdf,docx,html --out build/rosepath`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bottomUp, err := parseOrder(order)
			if err != nil {
				return err
			}
			if out == "" {
				out = "liftplan"
			}
			opts := render.Options{BottomUp: bottomUp, Compress: compress}
			convert := func() error {
				input, err := in.input()
				if err != nil {
					return err
				}
				plan, err := liftplan.Convert(input)
				if err != nil {
					return err
				}
				paths, err := renderAll(plan, splitFormats(formats), out, opts)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				log.Info("lift plan written", "picks", len(plan.Rows), "blocks", len(plan.Blocks), "files", len(paths))
				return nil
			}

			if !watchInputs {
				return convert()
			}
			if err := convert(); err != nil {
				log.Error("conversion failed", "error", err)
			}
			return watch(cmd.Context(), in.files(), 300*time.Millisecond, func() {
				if err := convert(); err != nil {
					log.Error("conversion failed", "error", err)
				}
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&formats, "format", "f", "pdf", "comma-separated formats: "+strings.Join(render.Formats, ", "))
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path without extension (default \"liftplan\")")
	cmd.Flags().StringVar(&order, "order", "bottom-up", "row order: bottom-up or top-down")
	cmd.Flags().BoolVar(&compress, "compress", true, "compress PDF streams")
	cmd.Flags().BoolVarP(&watchInputs, "watch", "w", false, "re-render whenever an input file changes")
	return cmd
}

func splitFormats(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// renderAll renders every format concurrently and writes the files only
// once all of them succeeded.
func renderAll(plan *liftplan.Plan, formats []string, out string, opts render.Options) ([]string, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output format given")
	}
	renderers := make([]render.Renderer, len(formats))
	for i, f := range formats {
		r, err := render.ForFormat(f, opts)
		if err != nil {
			return nil, err
		}
		renderers[i] = r
	}

	bufs := make([]bytes.Buffer, len(renderers))
	var g errgroup.Group
	for i, r := range renderers {
		g.Go(func() error {
			if err := r.Render(&bufs[i], plan); err != nil {
				return fmt.Errorf("render %s: %w", formats[i], err)
			}
			log.Debug("rendered", "format", formats[i], "bytes", bufs[i].Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	paths := make([]string, len(renderers))
	for i, r := range renderers {
		paths[i] = out + r.Extension()
		if err := os.WriteFile(paths[i], bufs[i].Bytes(), 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
