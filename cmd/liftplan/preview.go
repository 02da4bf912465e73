package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/dgallion1/liftplan/internal/render"
	"github.com/spf13/cobra"
)

func newPreviewCmd() *cobra.Command {
	var (
		in    inputFlags
		order string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the lift plan as a text grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bottomUp, err := parseOrder(order)
			if err != nil {
				return err
			}
			input, err := in.input()
			if err != nil {
				return err
			}
			plan, err := liftplan.Convert(input)
			if err != nil {
				return err
			}
			writeGrid(cmd.OutOrStdout(), plan, bottomUp)
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&order, "order", "top-down", "row order: bottom-up or top-down")
	return cmd
}

// writeGrid prints one line per pick, "#" for a raised shaft, with the
// section annotations on their own lines, indented by nesting depth.
func writeGrid(w io.Writer, p *liftplan.Plan, bottomUp bool) {
	width := len(fmt.Sprint(len(p.Rows)))
	mark := func(m liftplan.Mark) string {
		return strings.Repeat(" ", width) + "   -- " + strings.Repeat("  ", m.Depth) + m.Label()
	}
	var out []string
	for _, r := range p.Rows {
		for _, m := range r.Begin {
			out = append(out, mark(m))
		}
		cells := make([]byte, p.Shafts)
		for s := 1; s <= p.Shafts; s++ {
			cells[s-1] = '.'
			if r.Shafts.Contains(s) {
				cells[s-1] = '#'
			}
		}
		out = append(out, fmt.Sprintf("%*d | %s | %s", width, r.Position, cells, r.Treadle()))
		for _, m := range r.End {
			out = append(out, mark(m))
		}
	}
	if bottomUp {
		slices.Reverse(out)
	}
	for _, l := range out {
		fmt.Fprintln(w, l)
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE.pdf",
		Short: "Print the text of a rendered PDF lift plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text, err := render.PDFText(data)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
