package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/core"
	"github.com/JonMunkholm/clodoo/internal/store"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	vars := map[string]string{"CLODOO_PROTOCOL": "memory"}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func seededStore() *store.Memory {
	m := store.NewMemory()
	m.DefineModel("res.partner",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "ref"},
		store.FieldDef{Name: "country_id", Type: "many2one", Relation: "res.country"},
		store.FieldDef{Name: "company_id", Type: "many2one", Relation: "res.company"},
	)
	m.DefineModel("res.company",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "country_id", Type: "many2one", Relation: "res.country"},
	)
	m.DefineModel("res.country",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "code"},
	)
	m.Put("res.country", 1, map[string]any{"name": "Italy", "code": "IT"})
	m.Put("res.company", 1, map[string]any{"name": "CompanyX", "country_id": int64(1)})
	return m
}

func newTestServer(t *testing.T, env map[string]string) (*Server, *store.Memory) {
	t.Helper()
	cfg := testConfig(t, env)
	st := seededStore()
	im := core.NewImporter(st, cfg.Import, &config.Catalog{})
	svc := core.NewService(im, core.NewRunLimiter(2, 0), core.NewRunHistory(10))
	return NewServer(svc, cfg), st
}

func upload(t *testing.T, url, fileName, data string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) core.ImportResult {
	t.Helper()
	var res core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestAPIImport_CreatesAndRecordsRun(t *testing.T) {
	s, st := newTestServer(t, nil)

	rec := serve(s, upload(t, "/api/import/res.partner", "partners.csv", "name,ref\nAlpha,A1\nBeta,B1\n", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeResult(t, rec)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Created)
	assert.Len(t, st.All("res.partner"), 2)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []core.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].Result.RunID)
	assert.Equal(t, core.ActionImport, runs[0].Action)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+res.RunID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIImport_NoFile(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, upload(t, "/api/import/res.partner", "", "", map[string]string{"key_field": "name"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SRC003", body.Code)
}

func TestAPIImport_FailedRunKeepsResult(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, upload(t, "/api/import/res.partner", "partners.csv", "city\nMilano\n", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := decodeResult(t, rec)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestAPIImport_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{"CLODOO_MAX_FILE_SIZE": "64"})

	data := "name\n" + strings.Repeat("Alpha\n", 100)
	rec := serve(s, upload(t, "/api/import/res.partner", "partners.csv", data, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPIRuns_NotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/failed-rows"} {
		rec := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "RUN004", body.Code)
	}
}

func TestAPIFailedRows_CSV(t *testing.T) {
	s, st := newTestServer(t, nil)
	st.SetHook(func(c store.Call) error {
		if c.Op == "create" && c.Vals["name"] == "Bad" {
			return errors.New("constraint violated")
		}
		return nil
	})

	rec := serve(s, upload(t, "/api/import/res.partner", "partners.csv", "name\nBad\nGood\n", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	require.Equal(t, 1, res.Failed)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+res.RunID+"/failed-rows", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "line,key,field,code,reason", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2,Bad,,ROW001,"), lines[1])
}

func TestAPI_RequiresKey(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "k1"})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "k1")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Runs     core.LimiterStatus `json:"runs"`
		Protocol string             `json:"protocol"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "memory", status.Protocol)
	assert.Equal(t, 2, status.Runs.Size)

	// Pages stay open.
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPages_ImportFormRedirectsToRun(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, upload(t, "/import", "res.partner.csv", "name\nAlpha\n", map[string]string{"kind": "entity"}))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/runs/"), loc)

	rec = serve(s, httptest.NewRequest(http.MethodGet, loc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "res.partner.csv")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), loc)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestPages_RunNotFoundIsHTML(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
}
