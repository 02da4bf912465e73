package draft

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure raised while building reference data or
// converting a draft wraps exactly one of these.
var (
	ErrUnknownTreadle       = errors.New("unknown treadle")
	ErrUnknownSection       = errors.New("unknown section")
	ErrEmptySection         = errors.New("empty section")
	ErrInvalidRepeatCount   = errors.New("invalid repeat count")
	ErrUnrecognizedToken    = errors.New("unrecognized token")
	ErrShaftIndexOutOfRange = errors.New("shaft index out of range")
	ErrCircularReference    = errors.New("circular reference")
	ErrNestingTooDeep       = errors.New("nesting too deep")
)

var kinds = []error{
	ErrUnknownTreadle,
	ErrUnknownSection,
	ErrEmptySection,
	ErrInvalidRepeatCount,
	ErrUnrecognizedToken,
	ErrShaftIndexOutOfRange,
	ErrCircularReference,
	ErrNestingTooDeep,
}

// InputError points at the offending table, row and token.
type InputError struct {
	Kind   error
	Table  string // "tieup", "sections", "treadling"; empty when not row-bound
	Row    int    // 1-based data row, 0 if N/A
	Ref    string // offending token, treadle or section name
	Detail string
}

func (e *InputError) Error() string {
	var b strings.Builder
	if e.Table != "" {
		b.WriteString(e.Table)
		if e.Row > 0 {
			fmt.Fprintf(&b, " row %d", e.Row)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Ref != "" {
		fmt.Fprintf(&b, " %q", e.Ref)
	}
	if e.Detail != "" {
		b.WriteString(" (" + e.Detail + ")")
	}
	return b.String()
}

func (e *InputError) Unwrap() error { return e.Kind }

// at returns a copy of e bound to a table row, keeping an existing binding.
func (e *InputError) at(table string, row int) *InputError {
	c := *e
	if c.Table == "" {
		c.Table = table
		c.Row = row
	}
	return &c
}

// KindOf returns a stable snake_case code for err, or "" if err is not
// one of the error kinds above.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return strings.ReplaceAll(k.Error(), " ", "_")
		}
	}
	return ""
}

// AsInputError unwraps err to an *InputError when there is one.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	ok := errors.As(err, &ie)
	return ie, ok
}
