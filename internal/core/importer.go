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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/crypt"
	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/macro"
	"github.com/JonMunkholm/clodoo/internal/store"
)

var (
	// ErrNoKeyField is returned when a header names neither a key nor a
	// description field.
	ErrNoKeyField = errors.New("no key field")

	// ErrSourceUnreadable is returned when the input cannot be opened or
	// read.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrEmptySource is returned for an input without a header row.
	ErrEmptySource = errors.New("empty source")

	// ErrAborted is returned when a row fails and exit on error is set.
	ErrAborted = errors.New("import aborted")
)

// versionReporter is implemented by stores that know their schema version.
type versionReporter interface {
	ServerVersion() string
}

// Importer runs imports against one store. Runs are serialized: rows of a
// later run may refer to the last id of an earlier one through header_id.
type Importer struct {
	store    store.Store
	settings config.ImportConfig
	catalog  *config.Catalog
	cipher   *crypt.Cipher
	schema   *Schema

	mu       sync.Mutex
	headerID int64
}

// Option configures an Importer.
type Option func(*Importer)

// WithCipher enables decryption of "$1$!" values.
func WithCipher(c *crypt.Cipher) Option {
	return func(im *Importer) { im.cipher = c }
}

// NewImporter returns an importer over st. cat may be nil.
func NewImporter(st store.Store, settings config.ImportConfig, cat *config.Catalog, opts ...Option) *Importer {
	if cat == nil {
		cat = &config.Catalog{}
	}
	im := &Importer{
		store:    st,
		settings: settings,
		catalog:  cat,
		schema:   NewSchema(st),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Settings returns the ambient settings runs start from.
func (im *Importer) Settings() config.ImportConfig {
	return im.settings
}

// sourcePath resolves name against the data path and prefers a
// "<name>_<version>.csv" sibling when one exists.
func (im *Importer) sourcePath(name, version string) string {
	path := name
	if !filepath.IsAbs(path) && im.settings.DataPath != "" {
		path = filepath.Join(im.settings.DataPath, name)
	}
	if version != "" && strings.HasSuffix(path, ".csv") {
		versioned := strings.TrimSuffix(path, ".csv") + "_" + version + ".csv"
		if fileExists(versioned) {
			return versioned
		}
	}
	if !fileExists(path) && fileExists(name) {
		return name
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// entityFromFile derives a model name from a file name:
// res_partner.csv and res-partner.csv both give res.partner.
func entityFromFile(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return strings.NewReplacer("-", ".", "_", ".").Replace(base)
}

// ImportFile imports a CSV file. The entity defaults to the one named by
// the file.
func (im *Importer) ImportFile(ctx context.Context, name string, opts ImportOptions) (*ImportResult, error) {
	if opts.Entity == "" {
		opts.Entity = entityFromFile(name)
	}
	path := im.sourcePath(name, im.schemaVersion())
	f, err := os.Open(path)
	if err != nil {
		res := im.newResult(filepath.Base(name), opts.Entity)
		return im.fail(ctx, res, fmt.Errorf("%s: %w: %w", name, ErrSourceUnreadable, err))
	}
	defer f.Close()

	return im.Import(ctx, f, filepath.Base(name), opts)
}

func (im *Importer) schemaVersion() string {
	if im.settings.SchemaVersion != "" {
		return im.settings.SchemaVersion
	}
	if vr, ok := im.store.(versionReporter); ok {
		return vr.ServerVersion()
	}
	return ""
}

func (im *Importer) newResult(fileName, entity string) *ImportResult {
	return &ImportResult{
		RunID:     uuid.NewString(),
		FileName:  fileName,
		Entity:    entity,
		Status:    StatusSuccess,
		DryRun:    im.settings.DryRun,
		StartedAt: time.Now(),
	}
}

// fail marks res as FAILED with err.
func (im *Importer) fail(ctx context.Context, res *ImportResult, err error) (*ImportResult, error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	res.Duration = time.Since(res.StartedAt)
	logging.FromContext(ctx).Error("import failed",
		"file", res.FileName,
		"entity", res.Entity,
		"error", err,
		"code", MapError(err).Code,
	)
	return res, err
}

// Import reads r as CSV and upserts its rows. The error is non-nil exactly
// when the result status is FAILED.
func (im *Importer) Import(ctx context.Context, r io.Reader, fileName string, opts ImportOptions) (*ImportResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	res := im.newResult(fileName, opts.Entity)
	ctx = logging.WithRun(ctx, res.RunID)

	if opts.Entity == "" {
		opts.Entity = entityFromFile(fileName)
	}
	run := im.newRun(ctx, res)
	defer func() { im.headerID = run.amb.HeaderID }()

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
		header[i] = CleanCell(header[i])
	}

	if err := run.resolveHeader(ctx, opts, header); err != nil {
		return im.fail(ctx, res, fmt.Errorf("%s: %w", fileName, err))
	}
	res.Entity = run.entity

	log := logging.FromContext(ctx)
	log.Info("import started",
		"file", fileName,
		"entity", run.entity,
		"key", strings.Join(run.spec.KeyFields, ","),
		"description", strings.Join(run.spec.DescriptionFields, ","),
		"hide_company", run.spec.HideCompanyScope,
		"dry_run", run.amb.DryRun,
	)

	for {
		if err := ctx.Err(); err != nil {
			return im.fail(ctx, res, err)
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line, _ := reader.FieldPos(0)
		if ok, abort := run.malformed(ctx, err); ok {
			if abort != nil {
				return im.fail(ctx, res, abort)
			}
			continue
		}
		if err != nil {
			return im.fail(ctx, res, fmt.Errorf("%s: %w: %w", fileName, ErrSourceUnreadable, err))
		}

		res.Rows++
		outcome, key, rowErr := run.row(ctx, line, header, record)
		res.count(outcome)
		if rowErr != nil {
			run.recordFailure(ctx, line, key, rowErr)
			if run.amb.ExitOnError {
				return im.fail(ctx, res, fmt.Errorf("%w: line %d: %v", ErrAborted, line, rowErr))
			}
		}
	}

	res.Duration = time.Since(res.StartedAt)
	log.Info("import finished",
		"entity", run.entity,
		"rows", res.Rows,
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ----------------------------------------------------------------------------
// Run
// ----------------------------------------------------------------------------

// run is the state of one import call.
type run struct {
	im     *Importer
	env    *Env
	amb    *AmbientContext
	tr     *Translator
	res    *Resolver
	eval   *Evaluator
	norm   *Normalizer
	spec   *ImportSpec
	entity string
	result *ImportResult
}

func (im *Importer) newRun(ctx context.Context, result *ImportResult) *run {
	s := im.settings
	amb := &AmbientContext{
		CompanyID:         s.CompanyID,
		CompanyName:       s.CompanyName,
		SchemaVersion:     im.schemaVersion(),
		DBType:            s.DBType,
		DryRun:            s.DryRun,
		ExitOnError:       s.ExitOnError,
		AliasModule:       s.AliasModule,
		NoFieldValidation: s.NoFieldValidation,
		HeaderID:          im.headerID,
	}
	if len(im.catalog.Variables) > 0 {
		amb.Vars = macro.MapVars(im.catalog.Variables)
	}
	env := &Env{Store: im.store, Ambient: amb, Schema: im.schema, Catalog: im.catalog}
	tr := NewTranslator(im.catalog, amb.SchemaVersion)
	res := NewResolver(env, tr)
	ev := NewEvaluator(env, res, im.cipher)
	r := &run{
		im:     im,
		env:    env,
		amb:    amb,
		tr:     tr,
		res:    res,
		eval:   ev,
		norm:   NewNormalizer(env, tr, ev),
		result: result,
	}
	r.initCompany(ctx)
	return r
}

// initCompany settles the ambient company and its country: the configured
// id, else the main company alias, else a name match, else the first
// company.
func (r *run) initCompany(ctx context.Context) {
	amb := r.amb
	log := logging.FromContext(ctx)
	if amb.CompanyID == 0 {
		if v, ok, err := r.res.ResolveAlias(ctx, "base.main_company"); err == nil && ok {
			amb.CompanyID, _ = store.AsID(v)
		}
	}
	if amb.CompanyID == 0 && amb.CompanyName != "" {
		ids := r.env.search(ctx, "res.company", store.Domain{store.Term{Field: "name", Op: "ilike", Value: amb.CompanyName}})
		if len(ids) > 0 {
			amb.CompanyID = ids[0]
		}
	}
	if amb.CompanyID == 0 {
		ids, err := r.env.Store.Search(ctx, "res.company", nil, "id")
		if err == nil && len(ids) > 0 {
			amb.CompanyID = ids[0]
		}
	}
	if amb.CompanyID == 0 {
		log.Warn("no company found, company scope disabled")
		return
	}
	rec, err := store.Browse(ctx, r.env.Store, "res.company", amb.CompanyID)
	if err != nil {
		log.Warn("company unreadable", "company_id", amb.CompanyID, "error", err)
		return
	}
	if name, _ := rec["name"].(string); name != "" {
		amb.CompanyName = name
	}
	if country, ok := store.AsID(rec["country_id"]); ok && country > 0 {
		amb.DefaultCountryID = country
		amb.CountryCode = r.env.CountryCode(ctx, country)
	}
}

// resolveHeader builds the ImportSpec from the options and the header.
func (r *run) resolveHeader(ctx context.Context, opts ImportOptions, header []string) error {
	spec := &ImportSpec{
		Entity:          opts.Entity,
		EntityByVersion: opts.EntityByVersion,
		DBTypeSelector:  opts.DBTypeSelector,
		AliasEntity:     opts.AliasEntity,
		AliasField:      opts.AliasField,
	}
	r.entity = spec.EntityFor(r.amb.SchemaVersion)
	if r.entity == "" {
		return fmt.Errorf("no entity: %w", ErrNoKeyField)
	}

	fields := r.headerFields(header)
	has := func(name string) bool { return slices.Contains(fields, name) }

	spec.KeyFields = splitList(opts.KeyField)
	if len(spec.KeyFields) == 0 {
		spec.KeyFields = splitList(opts.DescriptionField)
	}
	if len(spec.KeyFields) == 0 {
		switch {
		case has("code"):
			spec.KeyFields = []string{"code"}
		case has("name"):
			spec.KeyFields = []string{"name"}
		case has("id"):
			spec.KeyFields = []string{"id"}
		default:
			spec.KeyFields = []string{"name"}
		}
	}
	spec.DescriptionFields = splitList(opts.DescriptionField)
	if len(spec.DescriptionFields) == 0 {
		spec.DescriptionFields = splitList(opts.KeyField)
	}
	if len(spec.DescriptionFields) == 0 {
		if !has("name") && has("code") {
			spec.DescriptionFields = []string{"code"}
		} else {
			spec.DescriptionFields = []string{"name"}
		}
	}
	if !slices.ContainsFunc(append(slices.Clone(spec.KeyFields), spec.DescriptionFields...), has) && !has("id") {
		return fmt.Errorf("%s: columns %v: %w", r.entity, fields, ErrNoKeyField)
	}

	if spec.DBTypeSelector == "" && has("db_type") {
		spec.DBTypeSelector = "db_type"
	}
	spec.ReplaceByID = !slices.Equal(spec.KeyFields, []string{"id"}) && has("id")
	if opts.HideCompany != nil {
		spec.HideCompanyScope = *opts.HideCompany
	} else {
		spec.HideCompanyScope = !r.env.Schema.HasField(ctx, r.entity, "company_id")
	}

	r.spec = spec
	r.amb.Mandatory = ProviderFor(r.entity).DefaultFields(ctx, r.env, r.entity)
	return nil
}

// headerFields maps header columns to field names the way the normalizer
// does, without validation.
func (r *run) headerFields(header []string) []string {
	out := make([]string, 0, len(header))
	for pos, column := range header {
		name := r.tr.NameForVersion(r.entity, column)
		if name == "" {
			continue
		}
		if to, ok := r.env.Catalog.RenameFor(pos, name); ok {
			name = to
		} else {
			name, _, _ = strings.Cut(name, "/")
			name, _, _ = strings.Cut(name, ":")
		}
		out = append(out, name)
	}
	return out
}

// rowError carries the field a row failed on.
type rowError struct {
	field string
	err   error
}

func (e *rowError) Error() string {
	if e.field == "" {
		return e.err.Error()
	}
	return e.field + ": " + e.err.Error()
}

func (e *rowError) Unwrap() error { return e.err }

// malformed counts a CSV parse error as a failed row and reports whether
// err was one. The returned error is set when the run must stop.
func (r *run) malformed(ctx context.Context, err error) (bool, error) {
	var parseErr *csv.ParseError
	if !errors.As(err, &parseErr) {
		return false, nil
	}
	r.result.Rows++
	r.result.Malformed++
	r.result.count(RowFailed)
	r.recordFailure(ctx, parseErr.Line, "", &rowError{err: err})
	if r.amb.ExitOnError {
		return true, fmt.Errorf("%w: line %d: %v", ErrAborted, parseErr.Line, err)
	}
	return true, nil
}

func (r *run) recordFailure(ctx context.Context, line int, key string, err error) {
	var re *rowError
	field := ""
	if errors.As(err, &re) {
		field = re.field
	}
	msg := MapError(err)
	logging.FromContext(ctx).Warn("row failed",
		"entity", r.entity,
		"line", line,
		"key", key,
		"field", field,
		"error", err,
		"code", msg.Code,
	)
	r.result.FailedRows = append(r.result.FailedRows, FailedRow{
		Line:   line,
		Key:    key,
		Field:  field,
		Reason: err.Error(),
		Code:   msg.Code,
	})
}

// rowKey returns the best-known identifying value of a row.
func (r *run) rowKey(row *Row) string {
	for _, name := range slices.Concat(r.spec.KeyFields, r.spec.DescriptionFields, []string{"id"}) {
		if v := Stringify(row.Value(name)); v != "" {
			return v
		}
	}
	return ""
}

// row processes one data record.
func (r *run) row(ctx context.Context, line int, header, record []string) (RowOutcome, string, error) {
	r.amb.resetLookups()
	log := logging.FromContext(ctx)

	if len(record) > len(header) {
		r.result.Malformed++
		log.Warn("malformed row", "entity", r.entity, "line", line,
			"columns", len(header), "cells", len(record), "extra", record[len(header):])
		record = record[:len(header)]
	}

	raw := NewRow(header, record)
	if r.entity == "res.users" {
		if login := strings.TrimSpace(raw.Text("login")); login != "" {
			r.amb.DefaultEmail = defaultEmail(login, r.amb.MajorVersion())
		}
	}

	row, err := r.norm.Normalize(ctx, raw, r.spec)
	if err != nil {
		return RowFailed, "", err
	}
	key := r.rowKey(row)

	if reason := r.excluded(row); reason != "" {
		log.Debug("row skipped", "entity", r.entity, "line", line, "key", key, "reason", reason)
		return RowSkipped, key, nil
	}

	ids, err := r.findExisting(ctx, row)
	if err != nil {
		return RowFailed, key, err
	}
	var cur store.Record
	if len(ids) > 0 {
		rec, err := store.Browse(ctx, r.env.Store, r.entity, ids[0])
		if err != nil {
			return RowFailed, key, &rowError{err: fmt.Errorf("read %s: %w", r.entity, err)}
		}
		cur = r.tr.FromVersion(r.entity, rec)
	}

	vals, updateHeader, err := r.resolveValues(ctx, row, cur)
	if err != nil {
		return RowFailed, key, err
	}

	if c, ok := vals["company_id"]; ok && r.amb.CompanyID != 0 {
		if id, isID := store.AsID(c); isID && id != r.amb.CompanyID {
			log.Debug("row skipped", "entity", r.entity, "line", line, "key", key, "reason", "other company")
			return RowSkipped, key, nil
		}
	}

	if len(ids) > 0 {
		return r.update(ctx, row, ids[0], vals, updateHeader, key)
	}
	return r.create(ctx, row, vals, updateHeader, key)
}

func defaultEmail(login string, major int) string {
	return fmt.Sprintf("%s%d@example.com", login, major)
}

// excluded reports why a row's db_type or oe_versions selector excludes
// it from this run, or "".
func (r *run) excluded(row *Row) string {
	if sel := r.spec.DBTypeSelector; sel != "" {
		if v := Stringify(row.Value(sel)); v != "" && !strings.Contains(v, r.amb.DBType) {
			return "db_type " + v
		}
	}
	versions := Stringify(row.Value("oe_versions"))
	if versions == "" {
		return ""
	}
	has := strings.Contains(versions, r.amb.SchemaVersion)
	switch {
	case strings.Contains(versions, "-") && has:
		return "oe_versions " + versions
	case strings.Contains(versions, "+") && !has:
		return "oe_versions " + versions
	}
	return ""
}

// findExisting looks the row up by id, then key fields, then description
// fields.
func (r *run) findExisting(ctx context.Context, row *Row) ([]int64, error) {
	st := r.env.Store
	if r.spec.ReplaceByID && !isBlank(row.Value("id")) {
		v, err := r.eval.EvaluateField(ctx, r.entity, "id", row.Value("id"))
		if err != nil {
			return nil, &rowError{field: "id", err: err}
		}
		if s, ok := v.(string); ok && isDigits(s) {
			v, _ = toNumber(s, "integer")
		}
		if id, ok := store.AsID(v); ok && id > 0 {
			ids, err := st.Search(ctx, r.entity, store.Domain{store.Eq("id", id)}, "")
			if err != nil {
				return nil, &rowError{field: "id", err: fmt.Errorf("search %s: %w", r.entity, err)}
			}
			if len(ids) > 0 {
				return ids, nil
			}
		}
	}

	fields := r.spec.KeyFields
	if allBlank(row, fields) {
		fields = r.spec.DescriptionFields
	}
	if allBlank(row, fields) {
		return nil, nil
	}
	values := make([]Value, len(fields))
	for i, f := range fields {
		v, err := r.eval.EvaluateField(ctx, r.entity, f, row.Value(f))
		if err != nil {
			return nil, &rowError{field: f, err: err}
		}
		values[i] = v
	}
	ids, err := r.res.ResolveIDs(ctx, r.entity, fields, values, !r.spec.HideCompanyScope)
	if err != nil {
		return nil, &rowError{field: strings.Join(fields, ","), err: err}
	}
	return ids, nil
}

func allBlank(row *Row, fields []string) bool {
	for _, f := range fields {
		if !isBlank(row.Value(f)) {
			return false
		}
	}
	return true
}

// resolveValues evaluates the row's fields and keeps those that differ
// from cur. updateHeader is false when a value refers to ${header_id}.
func (r *run) resolveValues(ctx context.Context, row *Row, cur store.Record) (map[string]any, bool, error) {
	skip := map[string]bool{"id": true, r.spec.AliasField: true, r.spec.DBTypeSelector: true}
	for name := range helperFields {
		skip[name] = true
	}

	vals := make(map[string]any)
	updateHeader := true
	for _, name := range row.Names() {
		if name == "" || skip[name] {
			continue
		}
		v := row.Value(name)
		if s, ok := v.(string); ok {
			if strings.Contains(s, "${header_id}") {
				updateHeader = false
			}
			v = strings.ReplaceAll(s, `\n`, "\n")
		}
		res, err := r.eval.Evaluate(ctx, v, name, r.spec, row)
		if err != nil {
			return nil, false, &rowError{field: name, err: err}
		}
		if IsAbsent(res) {
			continue
		}
		if cur != nil && sameValue(res, cur[name]) {
			continue
		}
		vals[name] = res
	}
	return vals, updateHeader, nil
}

// update writes the changed values of a matched row.
func (r *run) update(ctx context.Context, row *Row, id int64, vals map[string]any, updateHeader bool, key string) (RowOutcome, string, error) {
	log := logging.FromContext(ctx)
	if updateHeader {
		r.amb.HeaderID = id
	}
	if len(vals) == 0 {
		log.Debug("row unchanged", "entity", r.entity, "id", id, "key", key)
		return RowUnchanged, key, nil
	}
	if r.amb.DryRun {
		log.Info("would update", "entity", r.entity, "id", id, "key", key, "fields", len(vals))
		return RowUpdated, key, nil
	}
	if err := r.env.Store.Write(ctx, r.entity, []int64{id}, r.tr.ToVersion(r.entity, vals)); err != nil {
		return RowFailed, key, &rowError{err: fmt.Errorf("write %s(%d): %w", r.entity, id, err)}
	}
	log.Info("record updated", "entity", r.entity, "id", id, "key", key, "fields", len(vals))
	r.registerAliases(ctx, row, id)
	return RowUpdated, key, nil
}

// create inserts an unmatched row.
func (r *run) create(ctx context.Context, row *Row, vals map[string]any, updateHeader bool, key string) (RowOutcome, string, error) {
	log := logging.FromContext(ctx)
	if !r.spec.HideCompanyScope && r.amb.CompanyID != 0 {
		if _, ok := vals["company_id"]; !ok {
			vals["company_id"] = r.amb.CompanyID
		}
	}
	if r.entity == "res.users" {
		if pw, ok := vals["new_password"]; ok {
			vals["password"] = pw
			delete(vals, "new_password")
		}
	}
	if r.amb.DryRun {
		r.amb.HeaderID = -1
		log.Info("would create", "entity", r.entity, "key", key)
		return RowCreated, key, nil
	}
	id, err := r.env.Store.Create(ctx, r.entity, r.tr.ToVersion(r.entity, vals))
	if err != nil {
		return RowFailed, key, &rowError{err: fmt.Errorf("create %s: %w", r.entity, err)}
	}
	if updateHeader {
		r.amb.HeaderID = id
	}
	log.Info("record created", "entity", r.entity, "id", id, "key", key)
	r.registerAliases(ctx, row, id)
	return RowCreated, key, nil
}

// registerAliases records the row's symbolic id and the secondary alias.
// Failures are logged; the record itself is already committed.
func (r *run) registerAliases(ctx context.Context, row *Row, id int64) {
	log := logging.FromContext(ctx)
	if ref := Stringify(row.Value("id")); ref != "" && !isDigits(ref) {
		if err := r.res.RegisterAlias(ctx, r.entity, ref, id); err != nil {
			log.Warn("alias not registered", "entity", r.entity, "id", id, "alias", ref, "error", err)
		}
	}

	field := r.spec.AliasField
	if r.spec.AliasEntity == "" || field == "" || !row.Has(field) {
		return
	}
	ref := Stringify(row.Value(field))
	if ref == "" || strings.Contains(ref, "None") {
		return
	}
	recs, err := r.env.Store.Read(ctx, r.entity, []int64{id}, field)
	if err != nil || len(recs) == 0 {
		log.Warn("alias target unreadable", "entity", r.entity, "id", id, "field", field, "error", err)
		return
	}
	target, ok := store.AsID(recs[0][field])
	if !ok || target == 0 {
		return
	}
	if err := r.res.RegisterAlias(ctx, r.spec.AliasEntity, ref, target); err != nil {
		log.Warn("alias not registered", "entity", r.spec.AliasEntity, "id", target, "alias", ref, "error", err)
	}
}
