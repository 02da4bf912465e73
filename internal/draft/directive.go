package draft

import (
	"regexp"
	"strconv"
	"strings"
)

// TreadlingRow is one row of the treadling table. Pick is informational;
// rows are expanded in input order. A row names either a section token or,
// for drafts without sections, the treadles of a single pick. Repeat, when
// present, gives the count the token itself does not.
type TreadlingRow struct {
	Row      int
	Pick     string
	Token    string
	Treadles string
	Repeat   string
}

// Directive is a parsed section reference.
//
// Grammar, keywords case-insensitive, fields separated by any whitespace:
//
//	token    = name { modifier }
//	modifier = "x" N | "x" " " N | "reverse" | "reversed"
//
// When both modifiers appear, in either order, the section is reversed
// first and the reversed form is repeated N times. Each "reverse" toggles,
// so "reverse reverse" is the original order. Repeat may be given once.
//
// A directive with an empty Name is a plain pick of Treadles.
type Directive struct {
	Row      int
	Pick     string
	Token    string
	Name     string
	Treadles []Treadle
	Repeat   int
	Reversed bool
}

// Flat reports whether d is a plain pick rather than a section reference.
func (d Directive) Flat() bool { return d.Name == "" }

var (
	repeatField = regexp.MustCompile(`(?i)^x([+-]?[0-9].*)$`)
	repeatValue = regexp.MustCompile(`^[0-9]+$`)
)

func isRepeatField(f string) bool { return repeatField.MatchString(f) }

func isReverseField(f string) bool {
	f = strings.ToLower(f)
	return f == "reverse" || f == "reversed"
}

func parseRepeat(token, n string) (int, error) {
	if !repeatValue.MatchString(n) {
		return 0, &InputError{Kind: ErrInvalidRepeatCount, Ref: token, Detail: "repeat must be a positive integer"}
	}
	v, err := strconv.Atoi(n)
	if err != nil || v < 1 {
		return 0, &InputError{Kind: ErrInvalidRepeatCount, Ref: token, Detail: "repeat must be a positive integer"}
	}
	return v, nil
}

// ParseToken parses a section token without resolving its name.
func ParseToken(token string) (Directive, error) {
	d, _, err := parseToken(token)
	return d, err
}

// parseToken also reports whether the token carried its own repeat.
func parseToken(token string) (Directive, bool, error) {
	d := Directive{Token: token, Repeat: 1}
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return d, false, &InputError{Kind: ErrUnrecognizedToken, Ref: token, Detail: "empty token"}
	}

	repeatSeen := false
	setRepeat := func(n string) error {
		if repeatSeen {
			return &InputError{Kind: ErrUnrecognizedToken, Ref: token, Detail: "repeat given more than once"}
		}
		v, err := parseRepeat(token, n)
		if err != nil {
			return err
		}
		repeatSeen = true
		d.Repeat = v
		return nil
	}

	// Modifiers trail the name; peel them off from the right.
	i := len(fields) - 1
peel:
	for i >= 1 {
		f := fields[i]
		switch {
		case isReverseField(f):
			d.Reversed = !d.Reversed
			i--
		case isRepeatField(f):
			if err := setRepeat(repeatField.FindStringSubmatch(f)[1]); err != nil {
				return d, false, err
			}
			i--
		case i >= 2 && strings.EqualFold(fields[i-1], "x") && isNumeric(f):
			if err := setRepeat(f); err != nil {
				return d, false, err
			}
			i -= 2
		default:
			break peel
		}
	}
	nameFields := fields[:i+1]
	if strings.EqualFold(nameFields[len(nameFields)-1], "x") && len(nameFields) > 1 {
		return d, false, &InputError{Kind: ErrUnrecognizedToken, Ref: token, Detail: "dangling repeat marker"}
	}
	d.Name = strings.Join(nameFields, " ")
	if !ValidSectionName(d.Name) {
		return d, false, &InputError{Kind: ErrUnrecognizedToken, Ref: token}
	}
	return d, repeatSeen, nil
}

// applyRepeat applies a separate repeat cell to d. A count given both in
// the token and in the cell is rejected.
func applyRepeat(d *Directive, seen bool, cell string) error {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if seen {
		return &InputError{Kind: ErrUnrecognizedToken, Ref: d.Token, Detail: "repeat given more than once"}
	}
	v, err := parseRepeat(cell, cell)
	if err != nil {
		return err
	}
	d.Repeat = v
	return nil
}

func isNumeric(f string) bool {
	_, err := strconv.ParseFloat(f, 64)
	return err == nil
}

// Parse parses token and resolves its section in reg.
func Parse(token string, reg *SectionRegistry) (Directive, error) {
	d, _, err := parse(token, reg)
	return d, err
}

func parse(token string, reg *SectionRegistry) (Directive, bool, error) {
	d, seen, err := parseToken(token)
	if err != nil {
		return d, seen, err
	}
	if !reg.Has(d.Name) {
		return d, seen, &InputError{Kind: ErrUnknownSection, Ref: d.Name}
	}
	return d, seen, nil
}

// ParseRow parses one treadling row into a section directive or a plain
// pick.
func ParseRow(r TreadlingRow, reg *SectionRegistry) (Directive, error) {
	token := strings.TrimSpace(r.Token)
	treadles := ParseTreadles(r.Treadles)
	var (
		d    Directive
		seen bool
		err  error
	)
	switch {
	case token != "" && len(treadles) > 0:
		err = &InputError{Kind: ErrUnrecognizedToken, Ref: token, Detail: "row gives both a section and treadles"}
	case token == "" && len(treadles) > 0:
		d = Directive{Token: strings.TrimSpace(r.Treadles), Treadles: treadles, Repeat: 1}
	default:
		d, seen, err = parse(r.Token, reg)
	}
	if err == nil {
		err = applyRepeat(&d, seen, r.Repeat)
	}
	if err != nil {
		if ie, ok := AsInputError(err); ok {
			return d, ie.at("treadling", r.Row)
		}
		return d, err
	}
	d.Row = r.Row
	d.Pick = strings.TrimSpace(r.Pick)
	return d, nil
}

// ParseRows parses every treadling row, failing on the first bad one.
func ParseRows(rows []TreadlingRow, reg *SectionRegistry) ([]Directive, error) {
	out := make([]Directive, 0, len(rows))
	for _, r := range rows {
		d, err := ParseRow(r, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
