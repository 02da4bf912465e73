package render

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/dgallion1/liftplan/internal/liftplan"
)

// CSVRenderer writes one record per pick in pick order:
// pick, shafts (space-separated), treadles (space-separated), section,
// section_start.
type CSVRenderer struct{}

func (r *CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }
func (r *CSVRenderer) Extension() string   { return ".csv" }

func (r *CSVRenderer) Render(w io.Writer, p *liftplan.Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pick", "shafts", "treadle", "section", "section_start"}); err != nil {
		return err
	}
	for _, row := range p.Rows {
		rec := []string{
			strconv.Itoa(row.Position),
			row.Shafts.String(),
			row.Treadle(),
			liftplan.Label(row.Section, row.Reversed, row.Repeat),
			strconv.FormatBool(row.SectionStart),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
