package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// document is the tabular content of a Markdown, HTML or Word file.
type document struct {
	title string
	grids [][][]string // each grid is header row plus data rows
}

// DocumentDecoder reads tables drawn in Markdown, HTML or DOCX files.
// Tables are matched by header, so a single document may carry all three
// in any order.
type DocumentDecoder struct {
	read func(io.Reader) (*document, error)
}

func (d *DocumentDecoder) Decode(r io.Reader, table Table, into *Tables) error {
	doc, err := d.read(r)
	if err != nil {
		return err
	}
	return doc.decode(table, into)
}

// DecodeDraft reads all three tables from one document. The document
// title (first heading or <title>) becomes the plan title. The sections
// table may be absent for plain or whole-draft treadling.
func (d *DocumentDecoder) DecodeDraft(r io.Reader) (*Tables, error) {
	doc, err := d.read(r)
	if err != nil {
		return nil, err
	}
	t := &Tables{Title: doc.title}
	for _, table := range drawOrder {
		if err := doc.decode(table, t); err != nil {
			if table == SectionsTable && errors.Is(err, ErrNoTable) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", table, err)
		}
	}
	return t, nil
}

// drawOrder is the order tables are tried in when a grid's header fits
// more than one of them equally well.
var drawOrder = []Table{TieupTable, SectionsTable, TreadlingTable}

// classify assigns each grid to the table whose columns it matches best:
// matched columns minus unrelated ones. A grid with a type column is a
// whole-draft treadling table. Grids matching nothing map to "".
func (doc *document) classify() []Table {
	out := make([]Table, len(doc.grids))
	for i, grid := range doc.grids {
		if len(grid) == 0 {
			continue
		}
		best := -1 << 31
		for _, table := range drawOrder {
			score, ok := headerScore(grid[0], table)
			if !ok {
				continue
			}
			if table == TreadlingTable && hasColumn(grid[0], "type") {
				out[i] = table
				break
			}
			if score > best {
				out[i], best = table, score
			}
		}
	}
	return out
}

func headerScore(header []string, table Table) (int, bool) {
	idx, err := headerIndex(header, columns[table], optional[table])
	if err != nil {
		return 0, false
	}
	if needOneOf(header, columns[table], idx, oneOf[table]) != nil {
		return 0, false
	}
	score := 0
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			score--
		}
	}
	for _, p := range idx {
		if p >= 0 {
			score += 2
		}
	}
	return score, true
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return true
		}
	}
	return false
}

// decode reads the first grid classified as table.
func (doc *document) decode(table Table, into *Tables) error {
	for i, t := range doc.classify() {
		if t == table {
			return decodeRecords(doc.grids[i], table, into)
		}
	}
	return fmt.Errorf("%w for %s (%d tables in document)", ErrNoTable, table, len(doc.grids))
}

func readMarkdown(r io.Reader) (*document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	doc := &document{}
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if doc.title == "" {
				doc.title = inlineText(node, src)
			}
			return ast.WalkSkipChildren, nil
		case *east.Table:
			var grid [][]string
			for row := node.FirstChild(); row != nil; row = row.NextSibling() {
				var rec []string
				for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
					rec = append(rec, inlineText(cell, src))
				}
				grid = append(grid, rec)
			}
			doc.grids = append(doc.grids, grid)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return doc, nil
}

// inlineText concatenates the text segments under n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func readHTML(r io.Reader) (*document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := &document{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "title", "h1", "h2", "h3":
				if doc.title == "" {
					doc.title = textContent(n)
				}
				return
			case "table":
				doc.grids = append(doc.grids, htmlGrid(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return doc, nil
}

// htmlGrid collects the rows of a table, skipping nested tables.
func htmlGrid(table *html.Node) [][]string {
	var grid [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "table":
			case "tr":
				var rec []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						rec = append(rec, textContent(cell))
					}
				}
				grid = append(grid, rec)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return grid
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func readDOCX(r io.Reader) (*document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	doc := &document{}
	for _, item := range f.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if doc.title == "" && docxHeading(it) {
				doc.title = docxParagraphText(it)
			}
		case *docx.Table:
			var grid [][]string
			for _, row := range it.TableRows {
				var rec []string
				for _, cell := range row.TableCells {
					var parts []string
					for _, p := range cell.Paragraphs {
						if t := docxParagraphText(p); t != "" {
							parts = append(parts, t)
						}
					}
					rec = append(rec, strings.Join(parts, " "))
				}
				grid = append(grid, rec)
			}
			doc.grids = append(doc.grids, grid)
		}
	}
	return doc, nil
}

func docxHeading(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return style == "title" || strings.HasPrefix(style, "heading")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
