package draft

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Treadle names a pedal. Numeric names are canonicalized so that "01" and
// "1" refer to the same treadle.
type Treadle string

// NormalizeTreadle trims s and canonicalizes integer names.
func NormalizeTreadle(s string) Treadle {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return Treadle(strconv.Itoa(n))
	}
	return Treadle(s)
}

// ParseTreadles splits a cell naming one or more treadles pressed together,
// e.g. "1 2". Duplicates are dropped; order is kept.
func ParseTreadles(cell string) []Treadle {
	var out []Treadle
	for _, f := range strings.Fields(cell) {
		tr := NormalizeTreadle(f)
		if !slices.Contains(out, tr) {
			out = append(out, tr)
		}
	}
	return out
}

// JoinTreadles renders treadles as a space-separated cell.
func JoinTreadles(ts []Treadle) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}

// TieupRow is one input row: a treadle and the shaft(s) it raises.
type TieupRow struct {
	Row     int
	Treadle string
	Shafts  string
}

// TieupTable maps each treadle to the shafts it raises. It is read-only
// once built.
type TieupTable struct {
	shafts int
	sets   map[Treadle]ShaftSet
	order  []Treadle
}

// NewTieupTable builds the table for a loom with n shafts. Rows sharing a
// treadle accumulate into one shaft set.
func NewTieupTable(rows []TieupRow, n int) (*TieupTable, error) {
	if n <= 0 {
		return nil, errors.New("shaft count must be positive")
	}
	t := &TieupTable{
		shafts: n,
		sets:   make(map[Treadle]ShaftSet),
	}
	for _, r := range rows {
		tr := NormalizeTreadle(r.Treadle)
		if tr == "" {
			return nil, &InputError{Kind: ErrUnrecognizedToken, Table: "tieup", Row: r.Row, Detail: "empty treadle"}
		}
		set, err := parseShafts(r.Shafts, n)
		if err != nil {
			return nil, err.(*InputError).at("tieup", r.Row)
		}
		prev, seen := t.sets[tr]
		if !seen {
			t.order = append(t.order, tr)
		}
		t.sets[tr] = prev.Union(set)
	}
	return t, nil
}

// Lookup returns the shaft set raised by treadle tr.
func (t *TieupTable) Lookup(tr Treadle) (ShaftSet, error) {
	set, ok := t.sets[tr]
	if !ok {
		return nil, &InputError{Kind: ErrUnknownTreadle, Ref: string(tr)}
	}
	return set, nil
}

// Raise returns the union of the shafts raised by every treadle in ts.
func (t *TieupTable) Raise(ts []Treadle) (ShaftSet, error) {
	var out ShaftSet
	for _, tr := range ts {
		set, err := t.Lookup(tr)
		if err != nil {
			return nil, err
		}
		out = out.Union(set)
	}
	return out, nil
}

// Shafts is the configured shaft count.
func (t *TieupTable) Shafts() int { return t.shafts }

// Treadles lists treadles in first-seen order.
func (t *TieupTable) Treadles() []Treadle {
	return append([]Treadle(nil), t.order...)
}
