package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLRenderer converts the Markdown rendering to a standalone HTML page.
type HTMLRenderer struct {
	Options
}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }
func (r *HTMLRenderer) Extension() string   { return ".html" }

const pageStyle = `table{border-collapse:collapse;font:12px sans-serif}` +
	`td,th{border:1px solid #000;min-width:1.5em;padding:1px 4px;text-align:center}`

func (r *HTMLRenderer) Render(w io.Writer, p *liftplan.Plan) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	src := (&MarkdownRenderer{Options: r.Options}).markdown(p)

	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head>\n<body>\n%s</body></html>\n",
		html.EscapeString(title(p)), pageStyle, body.Bytes())
	return err
}
