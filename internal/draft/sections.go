package draft

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxNesting bounds how deeply sections may reference other sections.
const MaxNesting = 20

// SectionRow is one input row of a section definition. Treadle may name
// several treadles pressed together in one pick ("1 2"). Ref names another
// section, optionally with modifiers, to be played in place; Repeat then
// gives its count. A row with neither treadles nor ref declares the
// section without adding a step.
type SectionRow struct {
	Row     int
	Section string
	Pick    string
	Treadle string
	Ref     string
	Repeat  string
}

var nameField = regexp.MustCompile(`^[\p{L}\p{N}_.\-]+$`)

// ValidSectionName reports whether name can be referenced from a
// treadling token: one or more words of letters, digits, '_', '.', '-',
// not starting with a repeat and not ending in a modifier.
func ValidSectionName(name string) bool {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !nameField.MatchString(f) {
			return false
		}
	}
	if isRepeatField(fields[0]) {
		return false
	}
	n := len(fields)
	if n == 1 {
		return true
	}
	last := fields[n-1]
	switch {
	case isReverseField(last), isRepeatField(last), strings.EqualFold(last, "x"):
		return false
	case n >= 3 && strings.EqualFold(fields[n-2], "x") && isNumeric(last):
		return false
	}
	return true
}

// Step is one entry of a section: either a pick of one or more treadles
// played Repeat times, or a reference to another section carrying its own
// modifiers.
type Step struct {
	Row      int
	Treadles []Treadle
	Repeat   int
	Ref      *Directive
}

// SectionRegistry maps section names to their ordered steps. Names are
// case-sensitive. It is read-only once built.
type SectionRegistry struct {
	steps map[string][]Step
	lens  map[string]int
	names []string
}

type orderedStep struct {
	pick int
	step Step
}

// NewSectionRegistry groups rows by section and orders each section's
// steps by ascending pick index, defaulting to the row number. Ties keep
// input order. References must resolve without cycles and nest at most
// MaxNesting deep.
func NewSectionRegistry(rows []SectionRow) (*SectionRegistry, error) {
	grouped := make(map[string][]orderedStep)
	firstRow := make(map[string]int)
	var names []string

	for _, r := range rows {
		name := strings.Join(strings.Fields(r.Section), " ")
		if !ValidSectionName(name) {
			return nil, &InputError{Kind: ErrUnrecognizedToken, Table: "sections", Row: r.Row, Ref: r.Section, Detail: "invalid section name"}
		}
		if _, ok := grouped[name]; !ok {
			grouped[name] = nil
			firstRow[name] = r.Row
			names = append(names, name)
		}
		st, ok, err := rowStep(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pick := r.Row
		if p := strings.TrimSpace(r.Pick); p != "" {
			if pick, err = strconv.Atoi(p); err != nil {
				return nil, &InputError{Kind: ErrUnrecognizedToken, Table: "sections", Row: r.Row, Ref: r.Pick, Detail: "pick index must be an integer"}
			}
		}
		grouped[name] = append(grouped[name], orderedStep{pick: pick, step: st})
	}

	reg := &SectionRegistry{
		steps: make(map[string][]Step, len(grouped)),
		lens:  make(map[string]int, len(grouped)),
		names: names,
	}
	for _, name := range names {
		s := grouped[name]
		if len(s) == 0 {
			return nil, &InputError{Kind: ErrEmptySection, Table: "sections", Row: firstRow[name], Ref: name}
		}
		sort.SliceStable(s, func(i, j int) bool { return s[i].pick < s[j].pick })
		seq := make([]Step, len(s))
		for i, o := range s {
			seq[i] = o.step
		}
		reg.steps[name] = seq
	}
	if err := reg.resolve(); err != nil {
		return nil, err
	}
	return reg, nil
}

// rowStep turns one row into its step. A repeat on a pick row repeats
// the pick.
func rowStep(r SectionRow) (Step, bool, error) {
	treadles := ParseTreadles(r.Treadle)
	ref := strings.TrimSpace(r.Ref)
	bind := func(err error) error {
		if ie, ok := AsInputError(err); ok {
			return ie.at("sections", r.Row)
		}
		return err
	}
	switch {
	case len(treadles) > 0 && ref != "":
		return Step{}, false, &InputError{Kind: ErrUnrecognizedToken, Table: "sections", Row: r.Row, Ref: ref, Detail: "row gives both treadles and a section reference"}
	case ref != "":
		d, seen, err := parseToken(ref)
		if err != nil {
			return Step{}, false, bind(err)
		}
		if err := applyRepeat(&d, seen, r.Repeat); err != nil {
			return Step{}, false, bind(err)
		}
		d.Row = r.Row
		return Step{Row: r.Row, Repeat: 1, Ref: &d}, true, nil
	case len(treadles) > 0:
		d := Directive{Token: r.Treadle, Repeat: 1}
		if err := applyRepeat(&d, false, r.Repeat); err != nil {
			return Step{}, false, bind(err)
		}
		return Step{Row: r.Row, Treadles: treadles, Repeat: d.Repeat}, true, nil
	}
	return Step{}, false, nil
}

// resolve checks every reference and records each section's expanded
// length, saturating at math.MaxInt.
func (r *SectionRegistry) resolve() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(r.names))
	depth := make(map[string]int, len(r.names))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		state[name] = visiting
		path = append(path, name)
		total, deepest := 0, 0
		for _, st := range r.steps[name] {
			if st.Ref == nil {
				total = addSat(total, st.Repeat)
				continue
			}
			ref := st.Ref.Name
			if _, ok := r.steps[ref]; !ok {
				return &InputError{Kind: ErrUnknownSection, Table: "sections", Row: st.Row, Ref: ref, Detail: "referenced by section " + strconv.Quote(name)}
			}
			switch state[ref] {
			case visiting:
				return &InputError{Kind: ErrCircularReference, Table: "sections", Row: st.Row, Ref: ref, Detail: strings.Join(append(path, ref), " -> ")}
			case 0:
				if err := visit(ref, path); err != nil {
					return err
				}
			}
			if d := depth[ref] + 1; d > deepest {
				deepest = d
			}
			if deepest > MaxNesting {
				return &InputError{Kind: ErrNestingTooDeep, Table: "sections", Row: st.Row, Ref: ref, Detail: fmt.Sprintf("more than %d levels below section %q", MaxNesting, name)}
			}
			total = addSat(total, mulSat(st.Ref.Repeat, r.lens[ref]))
		}
		state[name] = done
		depth[name] = deepest
		r.lens[name] = total
		return nil
	}
	for _, name := range r.names {
		if state[name] == 0 {
			if err := visit(name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func mulSat(a, b int) int {
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}

// Lookup returns a copy of the named section's steps.
func (r *SectionRegistry) Lookup(name string) ([]Step, error) {
	seq, ok := r.steps[name]
	if !ok {
		return nil, &InputError{Kind: ErrUnknownSection, Ref: name}
	}
	return append([]Step(nil), seq...), nil
}

// Has reports whether name is a defined section.
func (r *SectionRegistry) Has(name string) bool {
	_, ok := r.steps[name]
	return ok
}

// Len returns the number of picks the named section expands to, counting
// nested references, or 0 if absent.
func (r *SectionRegistry) Len(name string) int { return r.lens[name] }

// Names lists sections in definition order.
func (r *SectionRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

// CheckTreadles verifies that every treadle used by any section has a
// tie-up entry.
func (r *SectionRegistry) CheckTreadles(t *TieupTable) error {
	for _, name := range r.names {
		for _, st := range r.steps[name] {
			for _, tr := range st.Treadles {
				if _, err := t.Lookup(tr); err != nil {
					return &InputError{Kind: ErrUnknownTreadle, Table: "sections", Row: st.Row, Ref: string(tr), Detail: "used by section " + strconv.Quote(name)}
				}
			}
		}
	}
	return nil
}
