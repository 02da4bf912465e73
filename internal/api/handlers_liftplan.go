package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/liftplan/internal/cache"
	"github.com/dgallion1/liftplan/internal/draft"
	"github.com/dgallion1/liftplan/internal/liftplan"
	"github.com/dgallion1/liftplan/internal/loader"
	"github.com/dgallion1/liftplan/internal/render"
	"github.com/go-chi/chi/v5"
)

// upload is one file read from the multipart form.
type upload struct {
	filename string
	data     []byte
}

// request holds a parsed conversion request.
type request struct {
	files    map[string]upload // keyed by form field
	shafts   int
	format   string
	bottomUp bool
	title    string
}

// httpError carries a status and JSON body fields.
type httpError struct {
	status int
	msg    string
	fields map[string]any
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) *httpError {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, herr := s.parseRequest(w, r)
	if herr != nil {
		s.fail(w, herr)
		return
	}

	rnd, err := render.ForFormat(req.format, render.Options{BottomUp: req.bottomUp, Compress: s.cfg.PDFCompress})
	if err != nil {
		s.fail(w, badRequest("%s", err.Error()))
		return
	}

	id := req.key()[:20]
	if doc := s.docs.Get(id); doc != nil {
		s.stats.CacheHits.Add(1)
		serveDocument(w, doc)
		return
	}

	plan, herr := s.convert(req)
	if herr != nil {
		s.fail(w, herr)
		return
	}

	var buf bytes.Buffer
	if err := rnd.Render(&buf, plan); err != nil {
		s.log.Error("render failed", "format", req.format, "error", err)
		s.fail(w, &httpError{status: http.StatusInternalServerError, msg: "failed to render document"})
		return
	}

	doc := &cache.Document{
		ID:          id,
		Filename:    documentName(req.title) + rnd.Extension(),
		ContentType: rnd.ContentType(),
		Picks:       len(plan.Rows),
		Data:        buf.Bytes(),
	}
	s.docs.Put(doc)
	s.stats.Conversions.Add(1)
	s.stats.Picks.Add(int64(len(plan.Rows)))
	s.log.Info("lift plan generated",
		"id", id,
		"format", req.format,
		"shafts", plan.Shafts,
		"picks", len(plan.Rows),
		"blocks", len(plan.Blocks),
		"bytes", buf.Len(),
	)
	serveDocument(w, doc)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, herr := s.parseRequest(w, r)
	if herr != nil {
		s.fail(w, herr)
		return
	}
	plan, herr := s.convert(req)
	if herr != nil {
		s.fail(w, herr)
		return
	}

	type jsonRow struct {
		Pick         int      `json:"pick"`
		Shafts       []int    `json:"shafts"`
		Treadle      string   `json:"treadle"`
		Section      string   `json:"section"`
		SectionStart bool     `json:"section_start"`
		Cycle        int      `json:"cycle"`
		Begin        []string `json:"begin,omitempty"`
		End          []string `json:"end,omitempty"`
	}
	type jsonBlock struct {
		Label string `json:"label"`
		First int    `json:"first"`
		Last  int    `json:"last"`
	}
	rows := make([]jsonRow, len(plan.Rows))
	for i, row := range plan.Rows {
		shafts := []int(row.Shafts)
		if shafts == nil {
			shafts = []int{}
		}
		rows[i] = jsonRow{
			Pick:         row.Position,
			Shafts:       shafts,
			Treadle:      row.Treadle(),
			Section:      row.Section,
			SectionStart: row.SectionStart,
			Cycle:        row.Cycle,
			Begin:        markLabels(row.Begin),
			End:          markLabels(row.End),
		}
	}
	blocks := make([]jsonBlock, len(plan.Blocks))
	for i, b := range plan.Blocks {
		blocks[i] = jsonBlock{Label: b.Label, First: b.First(), Last: b.Last()}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"shafts": plan.Shafts,
		"picks":  len(plan.Rows),
		"blocks": blocks,
		"rows":   rows,
	})
}

func markLabels(marks []liftplan.Mark) []string {
	var out []string
	for _, m := range marks {
		out = append(out, m.Label())
	}
	return out
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc := s.docs.Get(chi.URLParam(r, "id"))
	if doc == nil {
		jsonError(w, "document not found or expired", http.StatusNotFound)
		return
	}
	serveDocument(w, doc)
}

func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (*request, *httpError) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, badRequest("invalid multipart form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	req := &request{
		files:    make(map[string]upload),
		shafts:   s.cfg.DefaultShafts,
		format:   s.cfg.DefaultFormat,
		bottomUp: s.cfg.BottomUp,
		title:    strings.TrimSpace(r.FormValue("title")),
	}

	for _, field := range []string{"draft", "tieup", "sections", "treadling"} {
		fhs := r.MultipartForm.File[field]
		if len(fhs) == 0 {
			continue
		}
		up, herr := s.readUpload(fhs[0])
		if herr != nil {
			return nil, herr
		}
		req.files[field] = up
	}
	// Sections are optional: plain and whole-draft treadling carry none.
	if _, ok := req.files["draft"]; !ok {
		for _, field := range []string{"tieup", "treadling"} {
			if _, ok := req.files[field]; !ok {
				return nil, badRequest("%s file is required", field)
			}
		}
	}

	if v := r.FormValue("shafts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.MaxShafts {
			return nil, badRequest("shafts must be an integer between 1 and %d", s.cfg.MaxShafts)
		}
		req.shafts = n
	} else {
		req.shafts = 0 // resolved after loading a draft file
	}
	if v := r.FormValue("format"); v != "" {
		req.format = strings.ToLower(strings.TrimSpace(v))
	}
	switch v := strings.ToLower(r.FormValue("order")); v {
	case "":
	case "bottom-up", "bottom_up", "bottomup":
		req.bottomUp = true
	case "top-down", "top_down", "topdown":
		req.bottomUp = false
	default:
		return nil, badRequest("order must be bottom-up or top-down, got %q", v)
	}
	return req, nil
}

func (s *Server) readUpload(fh *multipart.FileHeader) (upload, *httpError) {
	filename := sanitizeFilename(fh.Filename)
	if !loader.IsSupportedExtension(filename) {
		return upload{}, badRequest("unsupported file type: %s", filepath.Ext(filename))
	}
	f, err := fh.Open()
	if err != nil {
		return upload{}, &httpError{status: http.StatusInternalServerError, msg: "failed to open file"}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return upload{}, &httpError{status: http.StatusInternalServerError, msg: "failed to read file"}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return upload{}, &httpError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes),
		}
	}
	return upload{filename: filename, data: data}, nil
}

// key identifies the rendered document for a request.
func (req *request) key() string {
	parts := [][]byte{
		[]byte(req.format),
		[]byte(strconv.FormatBool(req.bottomUp)),
		[]byte(strconv.Itoa(req.shafts)),
		[]byte(req.title),
	}
	for _, field := range []string{"draft", "tieup", "sections", "treadling"} {
		up := req.files[field]
		parts = append(parts, []byte(strings.ToLower(filepath.Ext(up.filename))), up.data)
	}
	return cache.Key(parts...)
}

// convert loads the uploaded tables and runs the pipeline.
func (s *Server) convert(req *request) (*liftplan.Plan, *httpError) {
	tables := &loader.Tables{}
	if up, ok := req.files["draft"]; ok {
		t, err := loader.LoadDraft(bytes.NewReader(up.data), up.filename)
		if err != nil {
			return nil, loadError(err, "draft: ")
		}
		tables = t
	}
	for _, table := range []loader.Table{loader.TieupTable, loader.SectionsTable, loader.TreadlingTable} {
		up, ok := req.files[string(table)]
		if !ok {
			continue
		}
		if err := loader.Load(bytes.NewReader(up.data), up.filename, table, tables); err != nil {
			return nil, loadError(err, "")
		}
	}

	shafts := req.shafts
	if shafts == 0 {
		shafts = tables.Shafts
	}
	if shafts == 0 {
		shafts = s.cfg.DefaultShafts
	}
	if shafts > s.cfg.MaxShafts {
		return nil, badRequest("shafts must be an integer between 1 and %d", s.cfg.MaxShafts)
	}
	title := req.title
	if title == "" {
		title = tables.Title
	}

	plan, err := liftplan.Convert(liftplan.Input{
		Title:     title,
		Tieup:     tables.Tieup,
		Sections:  tables.Sections,
		Treadling: tables.Treadling,
		Shafts:    shafts,
		MaxPicks:  s.cfg.MaxPicks,
	})
	if err != nil {
		return nil, conversionError(err)
	}
	return plan, nil
}

// loadError reports unreadable files as bad requests and rows a loader
// rejected as conversion errors.
func loadError(err error, prefix string) *httpError {
	if _, ok := draft.AsInputError(err); ok {
		return conversionError(err)
	}
	return badRequest("%s%v", prefix, err)
}

func conversionError(err error) *httpError {
	herr := &httpError{status: http.StatusUnprocessableEntity, msg: err.Error(), fields: map[string]any{}}
	switch {
	case errors.Is(err, liftplan.ErrTooManyPicks):
		herr.fields["kind"] = "too_many_picks"
	case draft.KindOf(err) != "":
		herr.fields["kind"] = draft.KindOf(err)
		if ie, ok := draft.AsInputError(err); ok {
			if ie.Table != "" {
				herr.fields["table"] = ie.Table
			}
			if ie.Row > 0 {
				herr.fields["row"] = ie.Row
			}
			if ie.Ref != "" {
				herr.fields["ref"] = ie.Ref
			}
		}
	default:
		herr.status = http.StatusBadRequest
	}
	return herr
}

func (s *Server) fail(w http.ResponseWriter, herr *httpError) {
	s.stats.Failures.Add(1)
	if herr.status >= 500 {
		s.log.Error("conversion failed", "status", herr.status, "error", herr.msg)
	} else {
		s.log.Warn("conversion rejected", "status", herr.status, "error", herr.msg, "kind", herr.fields["kind"])
	}
	body := map[string]any{"error": herr.msg}
	for k, v := range herr.fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(herr.status)
	json.NewEncoder(w).Encode(body)
}

func serveDocument(w http.ResponseWriter, doc *cache.Document) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("X-Liftplan-ID", doc.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

// documentName turns a title into a download base name.
func documentName(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "liftplan"
	}
	return name
}
