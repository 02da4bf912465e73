package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/liftplan/internal/draft"
	"gopkg.in/yaml.v3"
)

// YAMLDecoder reads JSON or YAML tables. Document order is preserved, so
// rows keep the order they were written in.
//
//	tieup:     {"1": [1, 2], "2": "3 4"}  or  [{treadle: 1, shafts: [1, 2]}]
//	sections:  {hem: [1, 2], block: [2, 1]}
//	treadling: ["hem x2", "block reverse"]  or  [{pick: 1, section: hem}]
//
// A draft document holds all three under the keys tieup, sections and
// treadling, plus optional shafts and title.
type YAMLDecoder struct{}

func (d *YAMLDecoder) Decode(r io.Reader, table Table, into *Tables) error {
	root, err := readNode(r)
	if err != nil || root == nil {
		return err
	}
	return decodeTable(root, table, into)
}

// DecodeDraft reads a combined draft document.
func (d *YAMLDecoder) DecodeDraft(r io.Reader) (*Tables, error) {
	root, err := readNode(r)
	if err != nil {
		return nil, err
	}
	t := &Tables{}
	if root == nil {
		return t, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: draft must be a mapping", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch strings.ToLower(key) {
		case "title":
			t.Title = val.Value
		case "shafts":
			n, err := strconv.Atoi(val.Value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("line %d: shafts must be a positive integer", val.Line)
			}
			t.Shafts = n
		default:
			table, err := ParseTable(key)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", root.Content[i].Line, err)
			}
			if err := decodeTable(val, table, t); err != nil {
				return nil, fmt.Errorf("%s: %w", table, err)
			}
		}
	}
	return t, nil
}

// LoadDraft reads a combined draft file.
func LoadDraft(r io.Reader, filename string) (*Tables, error) {
	dec, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	dd, ok := dec.(DraftDecoder)
	if !ok {
		return nil, fmt.Errorf("%s files cannot hold a whole draft: %s", filepath.Ext(filename), filename)
	}
	return dd.DecodeDraft(r)
}

func readNode(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0], nil
	}
	return &doc, nil
}

func decodeTable(n *yaml.Node, table Table, into *Tables) error {
	switch table {
	case TieupTable:
		return decodeTieup(n, into)
	case SectionsTable:
		return decodeSections(n, into)
	case TreadlingTable:
		return decodeTreadling(n, into)
	}
	return fmt.Errorf("unknown table %q", table)
}

// cellText flattens a scalar or a sequence of scalars to a
// space-separated cell.
func cellText(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("line %d: expected a scalar", c.Line)
			}
			parts = append(parts, c.Value)
		}
		return strings.Join(parts, " "), nil
	}
	return "", fmt.Errorf("line %d: expected a scalar or list", n.Line)
}

// fields reads a flow mapping such as {treadle: 1, shafts: [1, 2]}.
func fields(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	m := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		m[strings.ToLower(n.Content[i].Value)] = n.Content[i+1]
	}
	return m, nil
}

func first(m map[string]*yaml.Node, keys ...string) (string, error) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return cellText(v)
		}
	}
	return "", nil
}

func decodeTieup(n *yaml.Node, into *Tables) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			shafts, err := cellText(n.Content[i+1])
			if err != nil {
				return err
			}
			into.Tieup = append(into.Tieup, draft.TieupRow{Row: i/2 + 1, Treadle: n.Content[i].Value, Shafts: shafts})
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			m, err := fields(item)
			if err != nil {
				return err
			}
			tr, err := first(m, "treadle")
			if err != nil {
				return err
			}
			shafts, err := first(m, "shafts", "shaft")
			if err != nil {
				return err
			}
			into.Tieup = append(into.Tieup, draft.TieupRow{Row: i + 1, Treadle: tr, Shafts: shafts})
		}
	default:
		return fmt.Errorf("line %d: tie-up must be a mapping or list", n.Line)
	}
	return nil
}

// decodeSections reads a mapping of section name to steps. A scalar is a
// single pick; in a list each item is one step: a scalar or nested list of
// treadles pressed together, or a mapping with treadles or ref and an
// optional repeat.
func decodeSections(n *yaml.Node, into *Tables) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sections must be a mapping of name to treadles", n.Line)
	}
	row := 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, val := n.Content[i].Value, n.Content[i+1]
		items := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			items = val.Content
		}
		if len(items) == 0 || (val.Kind == yaml.ScalarNode && strings.TrimSpace(val.Value) == "") {
			row++
			into.Sections = append(into.Sections, draft.SectionRow{Row: row, Section: name})
			continue
		}
		for p, item := range items {
			row++
			sr := draft.SectionRow{Row: row, Section: name, Pick: strconv.Itoa(p + 1)}
			if item.Kind == yaml.MappingNode {
				m, err := fields(item)
				if err != nil {
					return err
				}
				if sr.Treadle, err = first(m, "treadles", "treadle"); err != nil {
					return err
				}
				if sr.Ref, err = first(m, "ref", "ref_name", "section"); err != nil {
					return err
				}
				if sr.Repeat, err = first(m, "repeat"); err != nil {
					return err
				}
			} else {
				text, err := cellText(item)
				if err != nil {
					return err
				}
				sr.Treadle = text
			}
			into.Sections = append(into.Sections, sr)
		}
	}
	return nil
}

func decodeTreadling(n *yaml.Node, into *Tables) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: treadling must be a list", n.Line)
	}
	for i, item := range n.Content {
		row := draft.TreadlingRow{Row: i + 1}
		switch item.Kind {
		case yaml.ScalarNode:
			row.Token = item.Value
		case yaml.SequenceNode:
			text, err := cellText(item)
			if err != nil {
				return err
			}
			row.Treadles = text
		case yaml.MappingNode:
			m, err := fields(item)
			if err != nil {
				return err
			}
			if row.Pick, err = first(m, "pick"); err != nil {
				return err
			}
			if row.Token, err = first(m, "section", "token", "name"); err != nil {
				return err
			}
			if row.Treadles, err = first(m, "treadles", "treadle"); err != nil {
				return err
			}
			if row.Repeat, err = first(m, "repeat"); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: expected a token, list or mapping", item.Line)
		}
		into.Treadling = append(into.Treadling, row)
	}
	return nil
}
