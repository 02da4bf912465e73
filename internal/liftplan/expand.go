package liftplan

import (
	"fmt"
	"math"

	"github.com/dgallion1/liftplan/internal/draft"
)

// MaxPicksCeiling bounds every expansion, including conversions that set
// no pick limit of their own.
const MaxPicksCeiling = 1 << 24

// MarkKind says whether a mark opens or closes a section.
type MarkKind int

const (
	Begin MarkKind = iota
	End
)

// Mark is a section boundary annotation. Depth 0 marks come from the
// treadling; deeper ones from sections referencing other sections.
type Mark struct {
	Kind     MarkKind
	Section  string
	Reversed bool
	Cycle    int // 1-based repeat cycle
	Repeat   int
	Depth    int
}

// Label renders the annotation, e.g. "Begin section hem (repeat 2)" or
// "End section hem".
func (m Mark) Label() string {
	if m.Kind == End {
		return "End section " + Label(m.Section, m.Reversed, 1)
	}
	s := "Begin section " + Label(m.Section, m.Reversed, 1)
	if m.Repeat > 1 {
		s += fmt.Sprintf(" (repeat %d)", m.Cycle)
	}
	return s
}

// ExpandedPick is one pick of the flattened treadling.
type ExpandedPick struct {
	Position     int // 1-based
	Treadles     []draft.Treadle
	Section      string // "" for plain picks
	Directive    int    // index into the directive list
	Reversed     bool
	Repeat       int
	SectionStart bool   // first pick of the directive, or of a run of plain picks
	Cycle        int    // 1-based repeat cycle within the directive
	CycleStart   bool   // first pick of a repeat cycle
	Begin        []Mark // marks opened before this pick, outermost first
	End          []Mark // marks closed after this pick, innermost first
}

// Length returns the number of picks the directives expand to,
// saturating at math.MaxInt.
func Length(directives []draft.Directive, reg *draft.SectionRegistry) int {
	n := 0
	for _, d := range directives {
		l := 1
		if !d.Flat() {
			l = reg.Len(d.Name)
		}
		if l == 0 || d.Repeat <= 0 {
			continue
		}
		if d.Repeat > (math.MaxInt-n)/l {
			return math.MaxInt
		}
		n += l * d.Repeat
	}
	return n
}

type expander struct {
	reg       *draft.SectionRegistry
	out       []ExpandedPick
	pending   []Mark
	directive int
}

// Expand flattens directives into one pick per row. A reversed directive
// mirrors its section first; the (possibly mirrored) sequence is then
// repeated. Sections referenced from a reversed section are mirrored too.
// Each cycle of a section is wrapped in Begin and End marks.
func Expand(directives []draft.Directive, reg *draft.SectionRegistry) ([]ExpandedPick, error) {
	n := Length(directives, reg)
	if n > MaxPicksCeiling {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyPicks, n, MaxPicksCeiling)
	}
	e := &expander{reg: reg, out: make([]ExpandedPick, 0, min(n, 1<<16))}
	for di, d := range directives {
		e.directive = di
		start := len(e.out)
		if d.Flat() {
			for range d.Repeat {
				e.pick(d, d.Treadles, 1)
			}
			if di > 0 && directives[di-1].Flat() {
				continue
			}
		} else {
			if !reg.Has(d.Name) {
				return nil, bindDirective(&draft.InputError{Kind: draft.ErrUnknownSection, Ref: d.Name}, d)
			}
			for c := 1; c <= d.Repeat; c++ {
				cycle := len(e.out)
				m := Mark{Kind: Begin, Section: d.Name, Reversed: d.Reversed, Cycle: c, Repeat: d.Repeat}
				if err := e.section(d, m, c); err != nil {
					return nil, err
				}
				if len(e.out) > cycle {
					e.out[cycle].CycleStart = true
				}
			}
		}
		if len(e.out) > start {
			e.out[start].SectionStart = true
		}
	}
	return e.out, nil
}

// section emits one cycle of the section named by m, bracketed by marks.
func (e *expander) section(d draft.Directive, m Mark, cycle int) error {
	steps, err := e.reg.Lookup(m.Section)
	if err != nil {
		return bindDirective(err, d)
	}
	e.pending = append(e.pending, m)
	for i := range steps {
		st := steps[i]
		if m.Reversed {
			st = steps[len(steps)-1-i]
		}
		if st.Ref == nil {
			for range st.Repeat {
				e.pick(d, st.Treadles, cycle)
			}
			continue
		}
		ref := st.Ref
		for c := 1; c <= ref.Repeat; c++ {
			inner := Mark{Kind: Begin, Section: ref.Name, Reversed: ref.Reversed != m.Reversed, Cycle: c, Repeat: ref.Repeat, Depth: m.Depth + 1}
			if err := e.section(d, inner, cycle); err != nil {
				return err
			}
		}
	}
	end := m
	end.Kind = End
	last := &e.out[len(e.out)-1]
	last.End = append(last.End, end)
	return nil
}

func (e *expander) pick(d draft.Directive, ts []draft.Treadle, cycle int) {
	e.out = append(e.out, ExpandedPick{
		Position:  len(e.out) + 1,
		Treadles:  ts,
		Section:   d.Name,
		Directive: e.directive,
		Reversed:  d.Reversed,
		Repeat:    d.Repeat,
		Cycle:     cycle,
		Begin:     e.pending,
	})
	e.pending = nil
}
