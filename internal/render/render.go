package render

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dgallion1/liftplan/internal/liftplan"
)

// Renderer writes an assembled lift plan as a document.
type Renderer interface {
	Render(w io.Writer, p *liftplan.Plan) error
	ContentType() string
	Extension() string
}

// Options control layout shared by all renderers.
type Options struct {
	// BottomUp draws pick 1 at the bottom, the way weaving drafts are read.
	BottomUp bool
	// Compress enables stream compression where the format has it.
	Compress bool
}

// Formats lists the supported format names.
var Formats = []string{"pdf", "docx", "html", "md", "csv"}

// ForFormat returns the renderer for a format name.
func ForFormat(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pdf":
		return &PDFRenderer{Options: opts}, nil
	case "docx":
		return &DOCXRenderer{Options: opts}, nil
	case "html", "htm":
		return &HTMLRenderer{Options: opts}, nil
	case "md", "markdown":
		return &MarkdownRenderer{Options: opts}, nil
	case "csv":
		return &CSVRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// line is one printed row: either an annotation or a pick.
type line struct {
	Label string
	Row   *liftplan.Row
}

// lines interleaves section begin and end annotations with picks, in
// drawing order.
func lines(p *liftplan.Plan, bottomUp bool) []line {
	out := make([]line, 0, len(p.Rows)+2*len(p.Blocks))
	for i := range p.Rows {
		r := &p.Rows[i]
		for _, m := range r.Begin {
			out = append(out, line{Label: m.Label()})
		}
		out = append(out, line{Row: r})
		for _, m := range r.End {
			out = append(out, line{Label: m.Label()})
		}
	}
	if bottomUp {
		slices.Reverse(out)
	}
	return out
}

func title(p *liftplan.Plan) string {
	if p.Title != "" {
		return p.Title
	}
	return "Lift plan"
}

func summary(p *liftplan.Plan) string {
	return fmt.Sprintf("%d picks, %d shafts, %d sections", len(p.Rows), p.Shafts, len(p.Blocks))
}
