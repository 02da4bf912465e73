package liftplan

import (
	"fmt"

	"github.com/dgallion1/liftplan/internal/draft"
)

// Row is one pick of the lift plan: the shafts to raise and the section
// it belongs to.
type Row struct {
	Position     int
	Treadles     []draft.Treadle
	Shafts       draft.ShaftSet
	Section      string
	Directive    int
	Reversed     bool
	Repeat       int
	SectionStart bool
	Cycle        int
	CycleStart   bool
	Begin        []Mark
	End          []Mark
}

// Treadle is the pick's treadles as one cell, e.g. "1 2".
func (r Row) Treadle() string { return draft.JoinTreadles(r.Treadles) }

// Translate maps each pick through the tie-up, raising the union of the
// shafts tied to its treadles. Order, length and section markers are
// preserved.
func Translate(picks []ExpandedPick, tieup *draft.TieupTable) ([]Row, error) {
	out := make([]Row, len(picks))
	for i, p := range picks {
		set, err := tieup.Raise(p.Treadles)
		if err != nil {
			if ie, ok := draft.AsInputError(err); ok {
				c := *ie
				c.Detail = fmt.Sprintf("pick %d", p.Position)
				if p.Section != "" {
					c.Detail += fmt.Sprintf(" in section %q", p.Section)
				}
				return nil, &c
			}
			return nil, err
		}
		out[i] = Row{
			Position:     p.Position,
			Treadles:     p.Treadles,
			Shafts:       set,
			Section:      p.Section,
			Directive:    p.Directive,
			Reversed:     p.Reversed,
			Repeat:       p.Repeat,
			SectionStart: p.SectionStart,
			Cycle:        p.Cycle,
			CycleStart:   p.CycleStart,
			Begin:        p.Begin,
			End:          p.End,
		}
	}
	return out, nil
}
