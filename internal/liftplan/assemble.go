package liftplan

import (
	"fmt"
	"strings"
)

// Plan is the render-ready lift plan.
type Plan struct {
	Title  string
	Shafts int
	Rows   []Row
	Blocks []Block
}

// Block is a run of consecutive rows produced by one directive.
type Block struct {
	Label    string
	Section  string
	Reversed bool
	Repeat   int
	Rows     []Row // shares storage with Plan.Rows
}

// First and Last are the 1-based positions the block covers.
func (b Block) First() int { return b.Rows[0].Position }
func (b Block) Last() int  { return b.Rows[len(b.Rows)-1].Position }

// Label describes a directive, e.g. "hem (reversed) x2". Plain picks have
// no label.
func Label(section string, reversed bool, repeat int) string {
	var b strings.Builder
	b.WriteString(section)
	if reversed {
		b.WriteString(" (reversed)")
	}
	if repeat > 1 {
		fmt.Fprintf(&b, " x%d", repeat)
	}
	return b.String()
}

// Assemble splits rows into blocks at every section start. Rows are not
// copied or reordered.
func Assemble(rows []Row, shafts int) *Plan {
	p := &Plan{Shafts: shafts, Rows: rows}
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && !rows[i].SectionStart {
			continue
		}
		if i > start {
			r := rows[start]
			p.Blocks = append(p.Blocks, Block{
				Label:    Label(r.Section, r.Reversed, r.Repeat),
				Section:  r.Section,
				Reversed: r.Reversed,
				Repeat:   r.Repeat,
				Rows:     rows[start:i:i],
			})
		}
		start = i
	}
	return p
}
