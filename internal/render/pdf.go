package render

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/go-pdf/fpdf"
)

// PDFRenderer draws the lift plan as a grid: one row per pick, one column
// per shaft, raised shafts filled.
type PDFRenderer struct {
	Options
}

const (
	pdfPickCol   = 14.0
	pdfMaxShaft  = 8.0
	pdfRowHeight = 5.0
)

// epoch is stamped as creation date so identical plans give identical files.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func (r *PDFRenderer) ContentType() string { return "application/pdf" }
func (r *PDFRenderer) Extension() string   { return ".pdf" }

func (r *PDFRenderer) Render(w io.Writer, p *liftplan.Plan) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(epoch)
	pdf.SetModificationDate(epoch)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(title(p), true)
	pdf.SetCreator("liftplan", false)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	left, top, right, bottom := pdf.GetMargins()
	shaftW := pdfMaxShaft
	if p.Shafts > 0 {
		shaftW = min(pdfMaxShaft, (pageW-left-right-pdfPickCol)/float64(p.Shafts))
	}
	tableW := pdfPickCol + shaftW*float64(p.Shafts)

	header := func() {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.SetFillColor(255, 255, 255)
		pdf.CellFormat(pdfPickCol, pdfRowHeight, "Pick", "1", 0, "C", false, 0, "")
		for s := 1; s <= p.Shafts; s++ {
			pdf.CellFormat(shaftW, pdfRowHeight, strconv.Itoa(s), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 7)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(title(p)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, summary(p), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	for _, ln := range lines(p, r.BottomUp) {
		if pdf.GetY()+pdfRowHeight > pageH-bottom {
			pdf.AddPage()
			pdf.SetY(top)
			header()
		}
		if ln.Row == nil {
			pdf.SetFillColor(211, 211, 211)
			pdf.CellFormat(tableW, pdfRowHeight, tr(ln.Label), "1", 1, "C", true, 0, "")
			continue
		}
		pdf.SetFillColor(0, 0, 0)
		pdf.CellFormat(pdfPickCol, pdfRowHeight, strconv.Itoa(ln.Row.Position), "1", 0, "C", false, 0, "")
		for s := 1; s <= p.Shafts; s++ {
			pdf.CellFormat(shaftW, pdfRowHeight, "", "1", 0, "C", ln.Row.Shafts.Contains(s), 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
