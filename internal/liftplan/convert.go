package liftplan

import (
	"errors"
	"fmt"

	"github.com/dgallion1/liftplan/internal/draft"
)

// ErrTooManyPicks is returned when a draft expands past Input.MaxPicks.
var ErrTooManyPicks = errors.New("too many picks")

// Input is everything a conversion needs.
type Input struct {
	Title     string
	Tieup     []draft.TieupRow
	Sections  []draft.SectionRow
	Treadling []draft.TreadlingRow
	Shafts    int
	MaxPicks  int // 0 means MaxPicksCeiling
}

// Convert runs the whole pipeline. It is a pure function of in: the same
// input always yields the same plan.
func Convert(in Input) (*Plan, error) {
	tieup, err := draft.NewTieupTable(in.Tieup, in.Shafts)
	if err != nil {
		return nil, stage("tie-up", err)
	}
	reg, err := draft.NewSectionRegistry(in.Sections)
	if err != nil {
		return nil, stage("sections", err)
	}
	if err := reg.CheckTreadles(tieup); err != nil {
		return nil, stage("sections", err)
	}
	directives, err := draft.ParseRows(in.Treadling, reg)
	if err != nil {
		return nil, stage("treadling", err)
	}
	if err := checkPicks(directives, tieup); err != nil {
		return nil, stage("treadling", err)
	}
	limit := in.MaxPicks
	if limit <= 0 || limit > MaxPicksCeiling {
		limit = MaxPicksCeiling
	}
	if n := Length(directives, reg); n > limit {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyPicks, n, limit)
	}
	picks, err := Expand(directives, reg)
	if err != nil {
		return nil, stage("expand", err)
	}
	rows, err := Translate(picks, tieup)
	if err != nil {
		return nil, stage("translate", err)
	}
	plan := Assemble(rows, in.Shafts)
	plan.Title = in.Title
	return plan, nil
}

// stage prefixes err with the pipeline stage unless it already names the
// table and row it came from.
func stage(name string, err error) error {
	if ie, ok := draft.AsInputError(err); ok && ie.Table != "" {
		return err
	}
	return fmt.Errorf("%s: %w", name, err)
}

// checkPicks verifies the treadles of plain picks against the tie-up so
// errors point at their treadling row.
func checkPicks(directives []draft.Directive, tieup *draft.TieupTable) error {
	for _, d := range directives {
		if !d.Flat() {
			continue
		}
		if _, err := tieup.Raise(d.Treadles); err != nil {
			return bindDirective(err, d)
		}
	}
	return nil
}

func bindDirective(err error, d draft.Directive) error {
	ie, ok := draft.AsInputError(err)
	if !ok {
		return err
	}
	c := *ie
	if c.Table == "" {
		c.Table = "treadling"
		c.Row = d.Row
	}
	return &c
}
