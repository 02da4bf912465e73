package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/liftplan/internal/draft"
)

// Table names one of the three input tables.
type Table string

const (
	TieupTable     Table = "tieup"
	SectionsTable  Table = "sections"
	TreadlingTable Table = "treadling"
)

var (
	// ErrMissingColumn is returned when a header lacks a required column.
	ErrMissingColumn = errors.New("missing column")
	// ErrNoTable is returned when a document holds no table for the
	// requested columns.
	ErrNoTable = errors.New("no matching table")
)

// Tables collects decoded rows. A draft file may also carry the shaft
// count and a title.
type Tables struct {
	Title     string
	Shafts    int
	Tieup     []draft.TieupRow
	Sections  []draft.SectionRow
	Treadling []draft.TreadlingRow
}

// Decoder appends the rows of one table read from r to into.
type Decoder interface {
	Decode(r io.Reader, table Table, into *Tables) error
}

// DraftDecoder reads all three tables from a single file.
type DraftDecoder interface {
	DecodeDraft(r io.Reader) (*Tables, error)
}

// SupportedExtensions lists file extensions this service can read.
var SupportedExtensions = map[string]bool{
	".csv":      true,
	".json":     true,
	".yaml":     true,
	".yml":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the decoder for a filename.
func ForFile(filename string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return &CSVDecoder{}, nil
	case ".json", ".yaml", ".yml":
		return &YAMLDecoder{}, nil
	case ".md", ".markdown":
		return &DocumentDecoder{read: readMarkdown}, nil
	case ".html", ".htm":
		return &DocumentDecoder{read: readHTML}, nil
	case ".docx":
		return &DocumentDecoder{read: readDOCX}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Load decodes one table from r, choosing the decoder by filename.
func Load(r io.Reader, filename string, table Table, into *Tables) error {
	dec, err := ForFile(filename)
	if err != nil {
		return err
	}
	if err := dec.Decode(r, table, into); err != nil {
		return fmt.Errorf("%s %s: %w", table, filepath.Base(filename), err)
	}
	return nil
}

// ParseTable maps a table name to a Table.
func ParseTable(s string) (Table, error) {
	switch t := Table(strings.ToLower(strings.TrimSpace(s))); t {
	case TieupTable, SectionsTable, TreadlingTable:
		return t, nil
	}
	return "", fmt.Errorf("unknown table %q", s)
}
