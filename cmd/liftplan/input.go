package main

import (
	"fmt"
	"os"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/dgallion1/liftplan/internal/loader"
	"github.com/spf13/cobra"
)

// inputFlags are the flags shared by convert and preview.
type inputFlags struct {
	draft     string
	tieup     string
	sections  string
	treadling string
	shafts    int
	title     string
	maxPicks  int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.draft, "draft", "", "draft file holding all three tables (.yaml, .json)")
	fl.StringVar(&f.tieup, "tieup", "", "tie-up table (treadle, shafts)")
	fl.StringVar(&f.sections, "sections", "", "sections table (section, pick, treadles, ref, repeat)")
	fl.StringVar(&f.treadling, "treadling", "", "treadling table (pick, section or treadles, repeat, type)")
	fl.IntVar(&f.shafts, "shafts", 0, "shaft count (default: from the draft, else 8)")
	fl.StringVar(&f.title, "title", "", "plan title")
	fl.IntVar(&f.maxPicks, "max-picks", 100000, "reject drafts that expand past this many picks (0 means the hard ceiling)")
}

// input loads the named files into a conversion input.
func (f *inputFlags) input() (liftplan.Input, error) {
	tables := &loader.Tables{}
	if f.draft != "" {
		file, err := os.Open(f.draft)
		if err != nil {
			return liftplan.Input{}, err
		}
		t, err := loader.LoadDraft(file, f.draft)
		file.Close()
		if err != nil {
			return liftplan.Input{}, fmt.Errorf("draft: %w", err)
		}
		tables = t
	}

	for _, src := range []struct {
		table loader.Table
		path  string
	}{
		{loader.TieupTable, f.tieup},
		{loader.SectionsTable, f.sections},
		{loader.TreadlingTable, f.treadling},
	} {
		if src.path == "" {
			if f.draft == "" && src.table != loader.SectionsTable {
				return liftplan.Input{}, fmt.Errorf("--%s is required without --draft", src.table)
			}
			continue
		}
		file, err := os.Open(src.path)
		if err != nil {
			return liftplan.Input{}, err
		}
		err = loader.Load(file, src.path, src.table, tables)
		file.Close()
		if err != nil {
			return liftplan.Input{}, err
		}
		log.Debug("loaded table", "table", src.table, "path", src.path)
	}

	shafts := f.shafts
	if shafts == 0 {
		shafts = tables.Shafts
	}
	if shafts == 0 {
		shafts = 8
	}
	title := f.title
	if title == "" {
		title = tables.Title
	}
	return liftplan.Input{
		Title:     title,
		Tieup:     tables.Tieup,
		Sections:  tables.Sections,
		Treadling: tables.Treadling,
		Shafts:    shafts,
		MaxPicks:  f.maxPicks,
	}, nil
}

// files lists the input paths that were given.
func (f *inputFlags) files() []string {
	var out []string
	for _, p := range []string{f.draft, f.tieup, f.sections, f.treadling} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseOrder(s string) (bool, error) {
	switch s {
	case "bottom-up", "bottomup", "":
		return true, nil
	case "top-down", "topdown":
		return false, nil
	}
	return false, fmt.Errorf("order must be bottom-up or top-down, got %q", s)
}
