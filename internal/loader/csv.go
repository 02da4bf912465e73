package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/liftplan/internal/draft"
)

// CSVDecoder reads tables with a header row. Header names are matched
// case-insensitively; the first matching alias wins.
//
//	tieup:     treadle, shaft|shafts
//	sections:  section|name, [pick], [treadle|treadles], [ref|ref_name], [repeat]
//	treadling: [pick], [section|token|name], [treadle|treadles], [repeat], [type], [ref|ref_name]
//
// A treadling table with a type column carries the whole draft: "section"
// rows define sections and "main" rows are the treadling.
type CSVDecoder struct{}

var columns = map[Table][][]string{
	TieupTable:     {{"treadle"}, {"shaft", "shafts"}},
	SectionsTable:  {{"section", "name"}, {"pick"}, {"treadle", "treadles"}, {"ref", "ref_name"}, {"repeat"}},
	TreadlingTable: {{"pick"}, {"section", "token", "name"}, {"treadle", "treadles"}, {"repeat"}, {"type"}, {"ref", "ref_name"}},
}

// optional columns may be absent; their cell reads as "".
var optional = map[Table]map[int]bool{
	SectionsTable:  {1: true, 2: true, 3: true, 4: true},
	TreadlingTable: {0: true, 1: true, 2: true, 3: true, 4: true, 5: true},
}

// oneOf lists column groups of which at least one must be present.
var oneOf = map[Table][]int{
	SectionsTable:  {2, 3},
	TreadlingTable: {1, 2},
}

func (d *CSVDecoder) Decode(r io.Reader, table Table, into *Tables) error {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	return decodeRecords(records, table, into)
}

// decodeRecords maps a header row plus data records onto table rows.
// Row numbers count data records, so blank records still take a number
// when the source keeps them.
func decodeRecords(records [][]string, table Table, into *Tables) error {
	if len(records) == 0 {
		return nil
	}

	want, ok := columns[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	idx, err := headerIndex(records[0], want, optional[table])
	if err != nil {
		return err
	}
	if err := needOneOf(records[0], want, idx, oneOf[table]); err != nil {
		return err
	}

	// First row is headers.
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := i + 1
		cell := func(c int) string {
			if idx[c] < 0 || idx[c] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx[c]])
		}
		switch table {
		case TieupTable:
			into.Tieup = append(into.Tieup, draft.TieupRow{Row: row, Treadle: cell(0), Shafts: cell(1)})
		case SectionsTable:
			into.Sections = append(into.Sections, draft.SectionRow{
				Row: row, Section: cell(0), Pick: cell(1), Treadle: cell(2), Ref: cell(3), Repeat: cell(4),
			})
		case TreadlingTable:
			if idx[4] < 0 {
				into.Treadling = append(into.Treadling, draft.TreadlingRow{
					Row: row, Pick: cell(0), Token: cell(1), Treadles: cell(2), Repeat: cell(3),
				})
				continue
			}
			switch kind := strings.ToLower(cell(4)); kind {
			case "section":
				into.Sections = append(into.Sections, draft.SectionRow{
					Row: row, Section: cell(1), Treadle: cell(2), Ref: cell(5), Repeat: cell(3),
				})
			case "main":
				into.Treadling = append(into.Treadling, draft.TreadlingRow{
					Row: row, Pick: cell(0), Token: cell(1), Repeat: cell(3),
				})
			default:
				return &draft.InputError{Kind: draft.ErrUnrecognizedToken, Table: string(TreadlingTable), Row: row, Ref: cell(4), Detail: "unknown row type"}
			}
		}
	}
	return nil
}

func needOneOf(header []string, want [][]string, idx, group []int) error {
	if len(group) == 0 {
		return nil
	}
	for _, c := range group {
		if idx[c] >= 0 {
			return nil
		}
	}
	names := make([]string, len(group))
	for i, c := range group {
		names[i] = want[c][0]
	}
	return fmt.Errorf("%w %s (header: %s)", ErrMissingColumn, strings.Join(names, " or "), strings.Join(header, ", "))
}

func headerIndex(header []string, want [][]string, opt map[int]bool) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make([]int, len(want))
	for c, aliases := range want {
		idx[c] = -1
		for _, a := range aliases {
			if p, ok := pos[a]; ok {
				idx[c] = p
				break
			}
		}
		if idx[c] < 0 && !opt[c] {
			return nil, fmt.Errorf("%w %q (header: %s)", ErrMissingColumn, aliases[0], strings.Join(header, ", "))
		}
	}
	return idx, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
