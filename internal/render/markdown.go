package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/liftplan/internal/liftplan"
)

// MarkdownRenderer writes a GitHub-flavoured Markdown table.
type MarkdownRenderer struct {
	Options
}

func (r *MarkdownRenderer) ContentType() string { return "text/markdown; charset=utf-8" }
func (r *MarkdownRenderer) Extension() string   { return ".md" }

func (r *MarkdownRenderer) Render(w io.Writer, p *liftplan.Plan) error {
	_, err := w.Write(r.markdown(p))
	return err
}

const raised = "■"

var mdEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `<`, `&lt;`, `[`, `\[`)

func (r *MarkdownRenderer) markdown(p *liftplan.Plan) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n%s\n\n", mdEscaper.Replace(title(p)), summary(p))

	buf.WriteString("| Pick |")
	for s := 1; s <= p.Shafts; s++ {
		fmt.Fprintf(&buf, " %d |", s)
	}
	buf.WriteString("\n| ---: |")
	buf.WriteString(strings.Repeat(" :-: |", p.Shafts))
	buf.WriteByte('\n')

	for _, ln := range lines(p, r.BottomUp) {
		if ln.Row == nil {
			fmt.Fprintf(&buf, "| **%s** |%s\n", mdEscaper.Replace(ln.Label), strings.Repeat("  |", p.Shafts))
			continue
		}
		buf.WriteString("| " + strconv.Itoa(ln.Row.Position) + " |")
		for s := 1; s <= p.Shafts; s++ {
			if ln.Row.Shafts.Contains(s) {
				buf.WriteString(" " + raised + " |")
			} else {
				buf.WriteString("  |")
			}
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
