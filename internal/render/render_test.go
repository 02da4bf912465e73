package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dgallion1/liftplan/internal/draft"
	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/fumiama/go-docx"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func samplePlan(t *testing.T, tokens ...string) *liftplan.Plan {
	t.Helper()
	in := liftplan.Input{
		Title:  "Sample",
		Shafts: 4,
		Tieup: []draft.TieupRow{
			{Row: 1, Treadle: "1", Shafts: "1 2"},
			{Row: 2, Treadle: "2", Shafts: "3 4"},
		},
		Sections: []draft.SectionRow{
			{Row: 1, Section: "hem", Pick: "1", Treadle: "1"},
			{Row: 2, Section: "hem", Pick: "2", Treadle: "2"},
		},
	}
	for i, tok := range tokens {
		in.Treadling = append(in.Treadling, draft.TreadlingRow{Row: i + 1, Token: tok})
	}
	plan, err := liftplan.Convert(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return plan
}

func render(t *testing.T, format string, opts Options, p *liftplan.Plan) []byte {
	t.Helper()
	r, err := ForFormat(format, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		t.Fatalf("render %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestLines_Order(t *testing.T) {
	p := samplePlan(t, "hem x2")
	var got []string
	for _, ln := range lines(p, false) {
		if ln.Row == nil {
			got = append(got, ln.Label)
		} else {
			got = append(got, ln.Row.Shafts.String())
		}
	}
	want := []string{
		"Begin section hem (repeat 1)", "1 2", "3 4", "End section hem",
		"Begin section hem (repeat 2)", "1 2", "3 4", "End section hem",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("top-down mismatch (-want +got):\n%s", diff)
	}

	up := lines(p, true)
	if up[0].Label != "End section hem" {
		t.Errorf("expected last end annotation first when bottom-up, got %+v", up[0])
	}
	if up[1].Row == nil || up[1].Row.Position != 4 {
		t.Errorf("expected pick 4 second when bottom-up, got %+v", up[1])
	}
	if up[len(up)-1].Label != "Begin section hem (repeat 1)" {
		t.Errorf("expected first annotation last when bottom-up, got %+v", up[len(up)-1])
	}
}

func TestCSVRenderer(t *testing.T) {
	got := string(render(t, "csv", Options{}, samplePlan(t, "hem", "hem reverse")))
	want := "pick,shafts,treadle,section,section_start\n" +
		"1,1 2,1,hem,true\n" +
		"2,3 4,2,hem,false\n" +
		"3,3 4,2,hem (reversed),true\n" +
		"4,1 2,1,hem (reversed),false\n"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestMarkdownRenderer(t *testing.T) {
	got := string(render(t, "md", Options{}, samplePlan(t, "hem")))
	for _, want := range []string{
		"# Sample",
		"| Pick | 1 | 2 | 3 | 4 |",
		"| **Begin section hem** |  |  |  |  |",
		"| **End section hem** |  |  |  |  |",
		"| 1 | ■ | ■ |  |  |",
		"| 2 |  |  | ■ | ■ |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestHTMLRenderer(t *testing.T) {
	out := render(t, "html", Options{BottomUp: true}, samplePlan(t, "hem x2"))
	doc, err := html.Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	var rows, cells int
	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows++
		}
		if n.Type == html.ElementNode && n.Data == "td" {
			cells++
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// header + 4 picks + 4 annotations
	if rows != 9 {
		t.Errorf("expected 9 table rows, got %d", rows)
	}
	if cells != 8*5 {
		t.Errorf("expected %d cells, got %d", 8*5, cells)
	}
	if !strings.Contains(text.String(), "Begin section hem (repeat 2)") {
		t.Errorf("expected annotation in text, got %q", text.String())
	}
}

func TestDOCXRenderer(t *testing.T) {
	out := render(t, "docx", Options{}, samplePlan(t, "hem x2"))
	doc, err := docx.Parse(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("parse docx: %v", err)
	}
	var tbl *docx.Table
	for _, item := range doc.Document.Body.Items {
		if tb, ok := item.(*docx.Table); ok {
			tbl = tb
		}
	}
	if tbl == nil {
		t.Fatal("expected a table in the document")
	}
	if len(tbl.TableRows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(tbl.TableRows))
	}
	label := tbl.TableRows[1]
	if len(label.TableCells) != 1 {
		t.Errorf("expected annotation row to span one cell, got %d", len(label.TableCells))
	}
	if got := label.TableCells[0].Paragraphs[0].String(); !strings.Contains(got, "Begin section hem (repeat 1)") {
		t.Errorf("unexpected annotation %q", got)
	}
	pick := tbl.TableRows[2]
	if len(pick.TableCells) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(pick.TableCells))
	}
	if pick.TableCells[1].TableCellProperties.Shade == nil || pick.TableCells[3].TableCellProperties.Shade != nil {
		t.Error("expected shafts 1-2 shaded and 3 clear on pick 1")
	}
}

func TestPDFRenderer(t *testing.T) {
	p := samplePlan(t, "hem x2", "hem reverse")
	out := render(t, "pdf", Options{}, p)
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", out[:min(8, len(out))])
	}
	text, err := PDFText(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Sample", "Begin section hem (repeat 2)", "Begin section hem (reversed)", "End section hem (reversed)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected pdf text to contain %q, got %q", want, text)
		}
	}
}

func TestPDFRenderer_Deterministic(t *testing.T) {
	p := samplePlan(t, "hem x3")
	a := render(t, "pdf", Options{Compress: true}, p)
	b := render(t, "pdf", Options{Compress: true}, p)
	if !bytes.Equal(a, b) {
		t.Error("expected identical PDF output for identical plans")
	}
}

func TestPDFRenderer_PageBreaks(t *testing.T) {
	p := samplePlan(t, "hem x100")
	out := render(t, "pdf", Options{Compress: true}, p)
	pages, err := PDFPages(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages < 2 {
		t.Errorf("expected several pages for 200 picks, got %d", pages)
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range Formats {
		r, err := ForFormat(f, Options{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", f, err)
		}
		if r.Extension() != "."+f {
			t.Errorf("%s: unexpected extension %q", f, r.Extension())
		}
	}
	if _, err := ForFormat("xlsx", Options{}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestCSVRenderer_MultiTreadleAndNested(t *testing.T) {
	in := liftplan.Input{
		Shafts: 4,
		Tieup: []draft.TieupRow{
			{Row: 1, Treadle: "1", Shafts: "1 2"},
			{Row: 2, Treadle: "2", Shafts: "3 4"},
		},
		Sections: []draft.SectionRow{
			{Row: 1, Section: "hem", Treadle: "1 2"},
			{Row: 2, Section: "border", Ref: "hem", Repeat: "2"},
		},
		Treadling: []draft.TreadlingRow{{Row: 1, Token: "border"}},
	}
	p, err := liftplan.Convert(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(render(t, "csv", Options{}, p))
	want := "pick,shafts,treadle,section,section_start\n" +
		"1,1 2 3 4,1 2,border,true\n" +
		"2,1 2 3 4,1 2,border,false\n"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
	var labels []string
	for _, ln := range lines(p, false) {
		if ln.Row == nil {
			labels = append(labels, ln.Label)
		}
	}
	wantLabels := []string{
		"Begin section border", "Begin section hem (repeat 1)", "End section hem",
		"Begin section hem (repeat 2)", "End section hem", "End section border",
	}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}
