package draft

import (
	"slices"
	"strconv"
	"strings"
)

// ShaftSet is the set of shafts raised together for one pick, kept sorted
// and free of duplicates.
type ShaftSet []int

// Contains reports whether shaft s is raised.
func (s ShaftSet) Contains(shaft int) bool {
	_, ok := slices.BinarySearch(s, shaft)
	return ok
}

// Union returns the sorted union of s and o.
func (s ShaftSet) Union(o ShaftSet) ShaftSet {
	out := make(ShaftSet, 0, len(s)+len(o))
	out = append(out, s...)
	out = append(out, o...)
	slices.Sort(out)
	return slices.Compact(out)
}

// String renders the set as space-separated indices, e.g. "1 3 4".
func (s ShaftSet) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// parseShafts reads one tie-up cell. A cell may hold several indices
// separated by whitespace; every index must lie in [1, n].
func parseShafts(cell string, n int) (ShaftSet, error) {
	var out ShaftSet
	for _, f := range strings.Fields(cell) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, &InputError{Kind: ErrShaftIndexOutOfRange, Ref: f, Detail: "not an integer"}
		}
		if v < 1 || v > n {
			return nil, &InputError{Kind: ErrShaftIndexOutOfRange, Ref: f, Detail: "valid range 1-" + strconv.Itoa(n)}
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
