package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/liftplan/internal/cache"
	"github.com/dgallion1/liftplan/internal/config"
)

const (
	tieupCSV     = "treadle,shafts\nT1,1 2\nT2,3\nT2,4\n"
	sectionsCSV  = "section,pick,treadle\nhem,1,T1\nhem,2,T2\nblock,1,T1\nblock,2,T2\n"
	treadlingCSV = "pick,section\n1,hem x2\n5,block reverse\n"
)

func testConfig() config.Config {
	return config.Config{
		CORSOrigins:     []string{"*"},
		MaxUploadBytes:  1 << 20,
		MaxPicks:        1000,
		DefaultShafts:   4,
		MaxShafts:       16,
		DefaultFormat:   "csv",
		BottomUp:        true,
		CacheTTL:        time.Minute,
		CacheMaxEntries: 8,
	}
}

func newTestServer(cfg config.Config) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cache.NewStore(cfg.CacheTTL, cfg.CacheMaxEntries), log, cfg)
}

func multipartBody(t *testing.T, files map[string][2]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(f[1]))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func standardFiles() map[string][2]string {
	return map[string][2]string{
		"tieup":     {"tieup.csv", tieupCSV},
		"sections":  {"sections.csv", sectionsCSV},
		"treadling": {"treadling.csv", treadlingCSV},
	}
}

func post(t *testing.T, srv http.Handler, path string, files map[string][2]string, fields map[string]string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(testConfig())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestConvert_CSV(t *testing.T) {
	srv := newTestServer(testConfig())
	rec := post(t, srv, "/api/liftplan", standardFiles(), map[string]string{"title": "Hem Sampler"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "pick,shafts,treadle,section,section_start\n" +
		"1,1 2,T1,hem x2,true\n" +
		"2,3 4,T2,hem x2,false\n" +
		"3,1 2,T1,hem x2,false\n" +
		"4,3 4,T2,hem x2,false\n" +
		"5,3 4,T2,block (reversed),true\n" +
		"6,1 2,T1,block (reversed),false\n"
	if rec.Body.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "hem-sampler.csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	id := rec.Header().Get("X-Liftplan-ID")
	if id == "" {
		t.Fatal("expected X-Liftplan-ID header")
	}
	get := httptest.NewRecorder()
	srv.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/liftplan/"+id, nil))
	if get.Code != http.StatusOK || get.Body.String() != want {
		t.Errorf("expected cached document, got %d: %s", get.Code, get.Body.String())
	}

	again := post(t, srv, "/api/liftplan", standardFiles(), map[string]string{"title": "Hem Sampler"})
	if again.Header().Get("X-Liftplan-ID") != id {
		t.Error("expected identical inputs to map to the same document id")
	}
	if srv.stats.CacheHits.Load() != 1 || srv.stats.Conversions.Load() != 1 {
		t.Errorf("expected 1 conversion and 1 cache hit, got %d and %d",
			srv.stats.Conversions.Load(), srv.stats.CacheHits.Load())
	}
}

func TestConvert_PDF(t *testing.T) {
	srv := newTestServer(testConfig())
	rec := post(t, srv, "/api/liftplan", standardFiles(), map[string]string{"format": "pdf", "order": "top-down"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected PDF body")
	}
}

func TestConvert_Draft(t *testing.T) {
	draft := `
shafts: 4
tieup: {T1: [1, 2], T2: [3, 4]}
sections: {hem: [T1, T2]}
treadling: [hem reverse]
`
	srv := newTestServer(testConfig())
	rec := post(t, srv, "/api/liftplan", map[string][2]string{"draft": {"draft.yaml", draft}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "1,3 4,T2,hem (reversed),true") {
		t.Errorf("unexpected body:\n%s", rec.Body.String())
	}
}

func TestPreview(t *testing.T) {
	srv := newTestServer(testConfig())
	rec := post(t, srv, "/api/liftplan/preview", standardFiles(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Picks  int `json:"picks"`
		Blocks []struct {
			Label string `json:"label"`
			First int    `json:"first"`
			Last  int    `json:"last"`
		} `json:"blocks"`
		Rows []struct {
			Pick   int   `json:"pick"`
			Shafts []int `json:"shafts"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Picks != 6 || len(got.Rows) != 6 {
		t.Errorf("expected 6 picks, got %d (%d rows)", got.Picks, len(got.Rows))
	}
	if len(got.Blocks) != 2 || got.Blocks[1].First != 5 || got.Blocks[1].Last != 6 {
		t.Errorf("unexpected blocks: %+v", got.Blocks)
	}
}

func TestConvert_InputErrors(t *testing.T) {
	tests := []struct {
		name      string
		treadling string
		status    int
		kind      string
		row       float64
	}{
		{"zero repeat", "pick,section\n1,hem\n2,hem x0\n", http.StatusUnprocessableEntity, "invalid_repeat_count", 2},
		{"unknown section", "pick,section\n1,unknown_section\n", http.StatusUnprocessableEntity, "unknown_section", 1},
		{"too many picks", "pick,section\n1,hem x5000\n", http.StatusUnprocessableEntity, "too_many_picks", 0},
		{"circular", "type,name,treadles,ref_name\nsection,a,,b\nsection,b,,a\nmain,a,,\n", http.StatusUnprocessableEntity, "circular_reference", 2},
		{"unknown row type", "type,name\nweft,hem\n", http.StatusUnprocessableEntity, "unrecognized_token", 1},
	}
	srv := newTestServer(testConfig())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := standardFiles()
			files["treadling"] = [2]string{"treadling.csv", tc.treadling}
			rec := post(t, srv, "/api/liftplan", files, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["kind"] != tc.kind {
				t.Errorf("expected kind %q, got %v", tc.kind, body["kind"])
			}
			if tc.row > 0 && body["row"] != tc.row {
				t.Errorf("expected row %v, got %v", tc.row, body["row"])
			}
		})
	}
}

func TestPreview_PlainTreadlingWithoutSections(t *testing.T) {
	srv := newTestServer(testConfig())
	files := map[string][2]string{
		"tieup":     {"tieup.csv", tieupCSV},
		"treadling": {"treadling.csv", "treadles,repeat\nT1 T2,\nT2,2\n"},
	}
	rec := post(t, srv, "/api/liftplan/preview", files, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Rows []struct {
			Shafts  []int    `json:"shafts"`
			Treadle string   `json:"treadle"`
			Begin   []string `json:"begin"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got.Rows))
	}
	if got.Rows[0].Treadle != "T1 T2" || len(got.Rows[0].Shafts) != 4 || got.Rows[0].Begin != nil {
		t.Errorf("unexpected first row: %+v", got.Rows[0])
	}
}

func TestPreview_NestedSections(t *testing.T) {
	srv := newTestServer(testConfig())
	files := map[string][2]string{
		"tieup":     {"tieup.csv", tieupCSV},
		"treadling": {"treadling.csv", "type,name,treadles,ref_name,repeat\nsection,hem,T1,,\nsection,border,,hem,2\nmain,border,,,\n"},
	}
	rec := post(t, srv, "/api/liftplan/preview", files, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Rows []struct {
			Begin []string `json:"begin"`
			End   []string `json:"end"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	want := []string{"Begin section border", "Begin section hem (repeat 1)"}
	if strings.Join(got.Rows[0].Begin, "|") != strings.Join(want, "|") {
		t.Errorf("expected begin marks %q, got %q", want, got.Rows[0].Begin)
	}
	want = []string{"End section hem", "End section border"}
	if strings.Join(got.Rows[1].End, "|") != strings.Join(want, "|") {
		t.Errorf("expected end marks %q, got %q", want, got.Rows[1].End)
	}
}

func TestConvert_BadRequests(t *testing.T) {
	srv := newTestServer(testConfig())

	files := standardFiles()
	delete(files, "tieup")
	if rec := post(t, srv, "/api/liftplan", files, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: expected 400, got %d", rec.Code)
	}

	if rec := post(t, srv, "/api/liftplan", standardFiles(), map[string]string{"shafts": "99"}); rec.Code != http.StatusBadRequest {
		t.Errorf("shafts: expected 400, got %d", rec.Code)
	}

	if rec := post(t, srv, "/api/liftplan", standardFiles(), map[string]string{"format": "xlsx"}); rec.Code != http.StatusBadRequest {
		t.Errorf("format: expected 400, got %d", rec.Code)
	}

	files = standardFiles()
	files["tieup"] = [2]string{"tieup.txt", tieupCSV}
	if rec := post(t, srv, "/api/liftplan", files, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("extension: expected 400, got %d", rec.Code)
	}
}

func TestDownload_NotFound(t *testing.T) {
	srv := newTestServer(testConfig())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/liftplan/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	srv := newTestServer(cfg)

	if rec := post(t, srv, "/api/liftplan", standardFiles(), nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}
	if rec := post(t, srv, "/api/liftplan", standardFiles(), nil, "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}
	if rec := post(t, srv, "/api/liftplan", standardFiles(), nil, "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}
}

func TestDocumentName(t *testing.T) {
	tests := map[string]string{
		"":                 "liftplan",
		"Rosepath Runner!": "rosepath-runner",
		"../etc":           "etc",
	}
	for in, want := range tests {
		if got := documentName(in); got != want {
			t.Errorf("documentName(%q): expected %q, got %q", in, want, got)
		}
	}
}
