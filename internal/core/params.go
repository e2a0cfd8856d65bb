package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// ErrConfigHeader is returned for a parameter file without the
// user,name,value columns.
var ErrConfigHeader = errors.New("invalid parameter header")

// settingsModel receives global parameters given without a model.
const settingsModel = "res.config.settings"

// ImportConfigFile applies a parameter file. Each row names a setting as
// "model.field" (or a bare field of the settings wizard) and its value.
func (im *Importer) ImportConfigFile(ctx context.Context, name string) (*ImportResult, error) {
	path := im.sourcePath(name, im.schemaVersion())
	f, err := os.Open(path)
	if err != nil {
		res := im.newResult(filepath.Base(name), settingsModel)
		return im.fail(ctx, res, fmt.Errorf("%s: %w: %w", name, ErrSourceUnreadable, err))
	}
	defer f.Close()
	return im.ImportConfig(ctx, f, filepath.Base(name))
}

// ImportConfig applies parameter rows read from r.
func (im *Importer) ImportConfig(ctx context.Context, r io.Reader, fileName string) (*ImportResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	res := im.newResult(fileName, settingsModel)
	ctx = logging.WithRun(ctx, res.RunID)
	run := im.newRun(ctx, res)
	log := logging.FromContext(ctx)

	reader := csv.NewReader(WrapSource(r, im.settings.MaxFileSize))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return im.fail(ctx, res, fmt.Errorf("%s: %w", fileName, ErrEmptySource))
	}
	if err != nil {
		return im.fail(ctx, res, fmt.Errorf("%s: %w: %w", fileName, ErrSourceUnreadable, err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	for _, col := range []string{"user", "name", "value"} {
		if !slices.Contains(header, col) {
			return im.fail(ctx, res, fmt.Errorf("%s: missing %q: %w", fileName, col, ErrConfigHeader))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return im.fail(ctx, res, err)
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if ok, abort := run.malformed(ctx, err); ok {
			if abort != nil {
				return im.fail(ctx, res, abort)
			}
			continue
		}
		if err != nil {
			return im.fail(ctx, res, fmt.Errorf("%s: %w: %w", fileName, ErrSourceUnreadable, err))
		}
		line, _ := reader.FieldPos(0)
		res.Rows++
		run.amb.resetLookups()

		outcome, key, rowErr := run.param(ctx, NewRow(header, record))
		res.count(outcome)
		if rowErr != nil {
			run.recordFailure(ctx, line, key, rowErr)
			if run.amb.ExitOnError {
				return im.fail(ctx, res, fmt.Errorf("%w: line %d: %v", ErrAborted, line, rowErr))
			}
		}
	}

	res.Duration = time.Since(res.StartedAt)
	log.Info("parameters applied",
		"rows", res.Rows,
		"updated", res.Created+res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

// paramExcluded reports whether the oe_versions cell of a parameter row
// excludes the current version: "-12.0" drops it on 12.0, "+12.0" keeps
// it only there.
func paramExcluded(versions, version string) bool {
	if versions == "" || version == "" {
		return false
	}
	items := splitList(versions)
	if slices.Contains(items, "-"+version) {
		return true
	}
	hasPlus := slices.ContainsFunc(items, func(s string) bool { return strings.HasPrefix(s, "+") })
	return hasPlus && !slices.Contains(items, "+"+version)
}

// param applies one parameter row.
func (r *run) param(ctx context.Context, row *Row) (RowOutcome, string, error) {
	log := logging.FromContext(ctx)
	if paramExcluded(row.Text("oe_versions"), r.amb.SchemaVersion) {
		return RowSkipped, row.Text("name"), nil
	}

	eval := func(col string) (Value, error) {
		v, err := r.eval.EvaluateField(ctx, "", col, row.Text(col))
		if err != nil {
			return nil, &rowError{field: col, err: err}
		}
		return v, nil
	}
	user, err := eval("user")
	if err != nil {
		return RowFailed, row.Text("name"), err
	}
	nameVal, err := eval("name")
	if err != nil {
		return RowFailed, row.Text("name"), err
	}
	name := Stringify(nameVal)
	if name == "" {
		log.Info("unmanaged parameter", "user", Stringify(user), "value", row.Text("value"))
		return RowSkipped, "", nil
	}
	if u := Stringify(user); u != "" {
		log.Info("unmanaged user parameter", "user", u, "name", name)
		return RowSkipped, name, nil
	}
	value, err := eval("value")
	if err != nil {
		return RowFailed, name, err
	}
	return r.setGlobalParam(ctx, name, value)
}

// setGlobalParam writes value to a "model.field" setting through a new
// settings record and its execute method.
func (r *run) setGlobalParam(ctx context.Context, name string, value Value) (RowOutcome, string, error) {
	log := logging.FromContext(ctx)
	model, field := settingsModel, name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		model, field = name[:i], name[i+1:]
	}
	st := r.env.Store

	// A dotted value names a record of the field's relation by name.
	if s, ok := value.(string); ok && strings.Contains(s, ".") && !isDecimal(s) {
		if info, ok := r.env.Schema.Field(ctx, model, field); ok && info.Relation != "" {
			ids, err := st.Search(ctx, info.Relation, store.Domain{store.Eq("name", s)}, "")
			if err != nil {
				return RowFailed, name, &rowError{field: field, err: fmt.Errorf("search %s: %w", info.Relation, err)}
			}
			if len(ids) == 0 {
				return RowFailed, name, &rowError{field: field, err: fmt.Errorf("%s %q: %w", info.Relation, s, store.ErrNotFound)}
			}
			value = ids[0]
		}
	}

	if ids, err := st.Search(ctx, model, nil, "id desc"); err == nil && len(ids) > 0 {
		if recs, err := st.Read(ctx, model, ids[:1], field); err == nil && len(recs) > 0 {
			if cur, ok := recs[0][field]; ok && sameValue(value, cur) {
				log.Debug("parameter unchanged", "model", model, "field", field)
				return RowUnchanged, name, nil
			}
		}
	}

	if r.amb.DryRun {
		log.Info("would set parameter", "model", model, "field", field, "value", value)
		return RowUpdated, name, nil
	}
	id, err := st.Create(ctx, model, map[string]any{field: value})
	if err != nil {
		return RowFailed, name, &rowError{field: field, err: fmt.Errorf("create %s: %w", model, err)}
	}
	if _, err := st.Execute(ctx, model, "execute", []int64{id}); err != nil {
		return RowFailed, name, &rowError{field: field, err: fmt.Errorf("execute %s: %w", model, err)}
	}
	log.Info("parameter set", "model", model, "field", field)
	return RowUpdated, name, nil
}

func isDecimal(s string) bool {
	whole, frac, ok := strings.Cut(s, ".")
	return ok && isDigits(whole) && isDigits(frac)
}
