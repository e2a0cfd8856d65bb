package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/clodoo/internal/core"
	"github.com/JonMunkholm/clodoo/internal/web/templates"
)

// defaultRunsLimit is how many runs list endpoints return by default.
const defaultRunsLimit = 20

// parseIntParam parses a positive integer query parameter with a default
// value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// uploadedFile reads the "file" part of a multipart upload, bounded by
// the configured file size.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(min(maxSize, 32<<20)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("file too large: %w", err)
		}
		return nil, nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	return file, header, nil
}

// importOptions reads the optional spec overrides of an import form.
func importOptions(r *http.Request, entity string) core.ImportOptions {
	opts := core.ImportOptions{
		Entity:           entity,
		KeyField:         r.FormValue("key_field"),
		DescriptionField: r.FormValue("description_field"),
		DBTypeSelector:   r.FormValue("db_type_selector"),
		AliasEntity:      r.FormValue("alias_entity"),
		AliasField:       r.FormValue("alias_field"),
	}
	if v := r.FormValue("hide_company"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err == nil {
			opts.HideCompany = &hide
		}
	}
	return opts
}

// ----------------------------------------------------------------------------
// API
// ----------------------------------------------------------------------------

// handleImport runs an import of the uploaded CSV into the entity named
// in the path and returns the ImportResult.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusForUpload(err))
		return
	}
	defer file.Close()

	res, err := s.service.Import(withOrigin(r), header.Filename, file, importOptions(r, entity))
	if res == nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, resultStatus(res, err), res)
}

// handleImportConfig runs a parameter import of the uploaded CSV.
func (s *Server) handleImportConfig(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusForUpload(err))
		return
	}
	defer file.Close()

	res, err := s.service.ImportConfig(withOrigin(r), header.Filename, file)
	if res == nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, resultStatus(res, err), res)
}

// resultStatus is 200 for finished runs and the error's status for failed
// ones. The body is the ImportResult either way.
func resultStatus(res *core.ImportResult, err error) int {
	if res.Status == core.StatusSuccess || err == nil {
		return http.StatusOK
	}
	return statusFor(err)
}

func statusForUpload(err error) int {
	if strings.Contains(err.Error(), "file too large") {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Runs(parseIntParam(r, "limit", defaultRunsLimit)))
}

// handleGetRun returns one recorded run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.service.Run(chi.URLParam(r, "runID"))
	if !ok {
		s.respondError(w, r, errRunNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleExportFailedRows downloads the failed rows of a run as CSV.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rec, ok := s.service.Run(runID)
	if !ok {
		s.respondError(w, r, errRunNotFound, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="failed_rows_%s.csv"`, runID))
	writeFailedRows(w, rec.Result.FailedRows)
}

func writeFailedRows(w io.Writer, rows []core.FailedRow) {
	cw := csv.NewWriter(w)
	cw.Write([]string{"line", "key", "field", "code", "reason"})
	for _, row := range rows {
		cw.Write([]string{strconv.Itoa(row.Line), row.Key, row.Field, row.Code, row.Reason})
	}
	cw.Flush()
}

// handleListEntities lists the entities with registered defaults.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Entities())
}

// handleStatus reports the run limiter state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":     s.service.LimiterStatus(),
		"dry_run":  s.cfg.Import.DryRun,
		"protocol": s.cfg.Store.Protocol,
	})
}

// ----------------------------------------------------------------------------
// Pages
// ----------------------------------------------------------------------------

// handleDashboard renders the upload form and the recent runs.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Dashboard(s.service.Entities(), s.service.Runs(defaultRunsLimit)).Render(r.Context(), w)
}

// handleImportForm runs an import submitted from the dashboard and
// redirects to its result page.
func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusForUpload(err))
		return
	}
	defer file.Close()

	var res *core.ImportResult
	if r.FormValue("kind") == "config" {
		res, err = s.service.ImportConfig(withOrigin(r), header.Filename, file)
	} else {
		res, err = s.service.Import(withOrigin(r), header.Filename, file, importOptions(r, r.FormValue("entity")))
	}
	if res == nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	http.Redirect(w, r, "/runs/"+res.RunID, http.StatusSeeOther)
}

// handleRunPage renders the result of one run.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.service.Run(chi.URLParam(r, "runID"))
	if !ok {
		s.respondError(w, r, errRunNotFound, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.RunPage(rec).Render(r.Context(), w)
}
