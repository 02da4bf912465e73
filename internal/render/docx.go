package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/fumiama/go-docx"
)

// DOCXRenderer writes the lift plan as a Word table. Raised shafts are
// shaded black; annotation rows span the whole table.
type DOCXRenderer struct {
	Options
}

func (r *DOCXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}
func (r *DOCXRenderer) Extension() string { return ".docx" }

func (r *DOCXRenderer) Render(w io.Writer, p *liftplan.Plan) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(title(p)).Bold().Size("28")
	doc.AddParagraph().AddText(summary(p)).Size("18")

	ls := lines(p, r.BottomUp)
	tbl := doc.AddTable(len(ls)+1, p.Shafts+1, 0, nil)

	head := tbl.TableRows[0]
	cellText(head.TableCells[0], "Pick").Bold()
	for s := 1; s <= p.Shafts; s++ {
		cellText(head.TableCells[s], strconv.Itoa(s)).Bold()
	}

	for i, ln := range ls {
		row := tbl.TableRows[i+1]
		if ln.Row == nil {
			cell := row.TableCells[0]
			row.TableCells = row.TableCells[:1]
			cell.TableCellProperties.GridSpan = &docx.WGridSpan{Val: p.Shafts + 1}
			cell.Shade("clear", "auto", "D3D3D3")
			cellText(cell, ln.Label)
			continue
		}
		cellText(row.TableCells[0], strconv.Itoa(ln.Row.Position))
		for s := 1; s <= p.Shafts; s++ {
			cell := row.TableCells[s]
			if ln.Row.Shafts.Contains(s) {
				cell.Shade("clear", "auto", "000000")
			}
			cell.AddParagraph()
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func cellText(c *docx.WTableCell, text string) *docx.Run {
	return c.AddParagraph().Justification("center").AddText(text).Size("14")
}
